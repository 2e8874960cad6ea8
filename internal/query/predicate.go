package query

// Field names a filterable, sortable payment attribute.
type Field string

const (
	FieldInquiryRefID     Field = "inquiry_ref_id"
	FieldTransactionRefID Field = "transaction_ref_id"
	FieldCurrency         Field = "currency"
	FieldStatus           Field = "status"
	FieldAmount           Field = "amount"
	FieldCreatedAt        Field = "created_at"
	FieldUpdatedAt        Field = "updated_at"
)

// Predicate is a boolean condition over a payment. The set of implementations
// is closed: True, And, In, Eq and Range.
type Predicate interface {
	predicate()
}

// True matches every payment.
type True struct{}

// And matches when every clause matches. An empty And matches everything.
type And struct {
	Clauses []Predicate
}

// In matches when the field value is one of Values.
type In struct {
	Field  Field
	Values []any
}

// Eq matches when the field value equals Value.
type Eq struct {
	Field Field
	Value any
}

// Range matches Lower <= field <= Upper. A nil bound is open.
type Range struct {
	Field Field
	Lower any
	Upper any
}

func (True) predicate()  {}
func (And) predicate()   {}
func (In) predicate()    {}
func (Eq) predicate()    {}
func (Range) predicate() {}

// AndOf conjoins two predicates, dropping True operands and flattening nested Ands.
func AndOf(left, right Predicate) Predicate {
	var clauses []Predicate
	for _, p := range []Predicate{left, right} {
		switch v := p.(type) {
		case nil, True:
		case And:
			clauses = append(clauses, v.Clauses...)
		default:
			clauses = append(clauses, v)
		}
	}
	switch len(clauses) {
	case 0:
		return True{}
	case 1:
		return clauses[0]
	}
	return And{Clauses: clauses}
}

// IsTrue reports whether p is trivially true.
func IsTrue(p Predicate) bool {
	switch v := p.(type) {
	case nil, True:
		return true
	case And:
		for _, c := range v.Clauses {
			if !IsTrue(c) {
				return false
			}
		}
		return true
	}
	return false
}
