package query

import (
	"fmt"
	"strings"
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return "", fmt.Errorf("ParseDirection: unknown direction %q", s)
}

type Order struct {
	Field     Field
	Direction Direction
}

// Sort is an ordered list of sort keys. An empty Sort requests no ordering.
type Sort []Order

func Unsorted() Sort { return nil }

func (s Sort) IsSorted() bool { return len(s) > 0 }

func (s Sort) And(field Field, dir Direction) Sort {
	return append(s, Order{Field: field, Direction: dir})
}
