package query

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paymentrecon/payment-service/internal/domain"
)

// Match evaluates p against a payment in memory. A nil field value (an unset
// transaction reference) never matches In, Eq or Range.
func Match(p Predicate, payment *domain.Payment) bool {
	switch v := p.(type) {
	case nil, True:
		return true
	case And:
		for _, c := range v.Clauses {
			if !Match(c, payment) {
				return false
			}
		}
		return true
	case In:
		actual, ok := fieldValue(payment, v.Field)
		if !ok {
			return false
		}
		for _, want := range v.Values {
			if c, ok := compare(actual, want); ok && c == 0 {
				return true
			}
		}
		return false
	case Eq:
		actual, ok := fieldValue(payment, v.Field)
		if !ok {
			return false
		}
		c, ok := compare(actual, v.Value)
		return ok && c == 0
	case Range:
		actual, ok := fieldValue(payment, v.Field)
		if !ok {
			return false
		}
		if v.Lower != nil {
			if c, ok := compare(actual, v.Lower); !ok || c < 0 {
				return false
			}
		}
		if v.Upper != nil {
			if c, ok := compare(actual, v.Upper); !ok || c > 0 {
				return false
			}
		}
		return true
	}
	return false
}

// SortPayments orders payments in place by s. Ties keep their input order.
func SortPayments(payments []domain.Payment, s Sort) {
	if !s.IsSorted() {
		return
	}
	slices.SortStableFunc(payments, func(a, b domain.Payment) int {
		for _, o := range s {
			av, aok := fieldValue(&a, o.Field)
			bv, bok := fieldValue(&b, o.Field)
			var c int
			switch {
			case !aok && !bok:
				c = 0
			case !aok:
				c = 1
			case !bok:
				c = -1
			default:
				c, _ = compare(av, bv)
			}
			if o.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func fieldValue(p *domain.Payment, f Field) (any, bool) {
	switch f {
	case FieldInquiryRefID:
		return p.InquiryRefID, true
	case FieldTransactionRefID:
		if p.TransactionRefID == nil {
			return nil, false
		}
		return *p.TransactionRefID, true
	case FieldCurrency:
		return p.Currency, true
	case FieldStatus:
		return p.Status, true
	case FieldAmount:
		return p.Amount, true
	case FieldCreatedAt:
		return p.CreatedAt, true
	case FieldUpdatedAt:
		return p.UpdatedAt, true
	}
	return nil, false
}

func compare(actual, want any) (int, bool) {
	switch a := actual.(type) {
	case uuid.UUID:
		w, ok := want.(uuid.UUID)
		if !ok {
			return 0, false
		}
		return cmp.Compare(a.String(), w.String()), true
	case domain.Currency:
		w, ok := want.(domain.Currency)
		if !ok {
			return 0, false
		}
		return cmp.Compare(a, w), true
	case domain.PaymentStatus:
		w, ok := want.(domain.PaymentStatus)
		if !ok {
			return 0, false
		}
		return cmp.Compare(a, w), true
	case decimal.Decimal:
		w, ok := want.(decimal.Decimal)
		if !ok {
			return 0, false
		}
		return a.Cmp(w), true
	case time.Time:
		w, ok := want.(time.Time)
		if !ok {
			return 0, false
		}
		return a.Compare(w), true
	}
	return 0, false
}
