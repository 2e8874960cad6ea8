package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
)

// parseFilterSpec maps search query parameters onto a FilterSpec. List
// parameters accept repeated keys, comma-separated values or both.
func parseFilterSpec(v url.Values) (query.FilterSpec, []FieldError) {
	var (
		f    query.FilterSpec
		errs []FieldError
	)
	fail := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	f.InquiryRefIDs = parseUUIDs(v, "inquiryRefIds", fail)
	f.TransactionRefIDs = parseUUIDs(v, "transactionRefIds", fail)

	for _, c := range listParam(v, "currencies") {
		cur := domain.Currency(c)
		if !cur.IsValid() {
			fail("currencies", "invalid currency "+strconv.Quote(c))
			continue
		}
		f.Currencies = append(f.Currencies, cur)
	}

	if s := v.Get("status"); s != "" {
		status := domain.PaymentStatus(s)
		if status.IsValid() {
			f.Status = &status
		} else {
			fail("status", "unknown status "+strconv.Quote(s))
		}
	}

	f.MinAmount = parseDecimal(v, "minAmount", fail)
	f.MaxAmount = parseDecimal(v, "maxAmount", fail)

	f.CreatedFrom = parseTime(v, "createdFrom", fail)
	f.CreatedTo = parseTime(v, "createdTo", fail)
	f.UpdatedFrom = parseTime(v, "updatedFrom", fail)
	f.UpdatedTo = parseTime(v, "updatedTo", fail)

	f.DirectionAmount = parseDirection(v, "directionAmount", fail)
	f.DirectionStatus = parseDirection(v, "directionStatus", fail)
	f.DirectionCreatedAt = parseDirection(v, "directionCreatedAt", fail)
	f.DirectionUpdatedAt = parseDirection(v, "directionUpdatedAt", fail)

	f.PageNumber = parseInt(v, "page", fail)
	f.PageSize = parseInt(v, "size", fail)

	return f, errs
}

func listParam(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseUUIDs(v url.Values, key string, fail func(string, string)) []uuid.UUID {
	var out []uuid.UUID
	for _, s := range listParam(v, key) {
		id, err := uuid.Parse(s)
		if err != nil {
			fail(key, "invalid uuid "+strconv.Quote(s))
			continue
		}
		out = append(out, id)
	}
	return out
}

func parseDecimal(v url.Values, key string, fail func(string, string)) *decimal.Decimal {
	s := v.Get(key)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		fail(key, "must be a decimal number")
		return nil
	}
	return &d
}

func parseTime(v url.Values, key string, fail func(string, string)) *time.Time {
	s := v.Get(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		fail(key, "must be an RFC3339 timestamp")
		return nil
	}
	return &t
}

func parseDirection(v url.Values, key string, fail func(string, string)) *query.Direction {
	s := v.Get(key)
	if s == "" {
		return nil
	}
	d, err := query.ParseDirection(s)
	if err != nil {
		fail(key, "must be asc or desc")
		return nil
	}
	return &d
}

func parseInt(v url.Values, key string, fail func(string, string)) *int {
	s := v.Get(key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fail(key, "must be an integer")
		return nil
	}
	return &n
}
