package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paymentrecon/payment-service/internal/query"
)

var columns = map[query.Field]string{
	query.FieldInquiryRefID:     "inquiry_ref_id",
	query.FieldTransactionRefID: "transaction_ref_id",
	query.FieldCurrency:         "currency",
	query.FieldStatus:           "status",
	query.FieldAmount:           "amount",
	query.FieldCreatedAt:        "created_at",
	query.FieldUpdatedAt:        "updated_at",
}

// sqlBuilder renders predicates with positional ($n) parameters.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) where(p query.Predicate) (string, error) {
	switch v := p.(type) {
	case nil, query.True:
		return "TRUE", nil
	case query.And:
		if len(v.Clauses) == 0 {
			return "TRUE", nil
		}
		parts := make([]string, 0, len(v.Clauses))
		for _, c := range v.Clauses {
			s, err := b.where(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case query.In:
		col, err := column(v.Field)
		if err != nil {
			return "", err
		}
		if len(v.Values) == 0 {
			return "FALSE", nil
		}
		params := make([]string, len(v.Values))
		for i, val := range v.Values {
			params[i] = b.arg(val)
		}
		return col + " IN (" + strings.Join(params, ", ") + ")", nil
	case query.Eq:
		col, err := column(v.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + b.arg(v.Value), nil
	case query.Range:
		col, err := column(v.Field)
		if err != nil {
			return "", err
		}
		var parts []string
		if v.Lower != nil {
			parts = append(parts, col+" >= "+b.arg(v.Lower))
		}
		if v.Upper != nil {
			parts = append(parts, col+" <= "+b.arg(v.Upper))
		}
		if len(parts) == 0 {
			return "TRUE", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}
	return "", fmt.Errorf("where: unsupported predicate %T", p)
}

func orderBy(s query.Sort) (string, error) {
	if !s.IsSorted() {
		return "", nil
	}
	parts := make([]string, 0, len(s))
	for _, o := range s {
		col, err := column(o.Field)
		if err != nil {
			return "", err
		}
		switch o.Direction {
		case query.Asc, query.Desc:
		default:
			return "", fmt.Errorf("orderBy: unknown direction %q", o.Direction)
		}
		parts = append(parts, col+" "+string(o.Direction))
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func column(f query.Field) (string, error) {
	col, ok := columns[f]
	if !ok {
		return "", fmt.Errorf("column: unknown field %q", f)
	}
	return col, nil
}
