package identity

import (
	"context"
	"errors"
	"unicode"
)

// Variant distinguishes the two master tables.
type Variant string

const (
	Student Variant = "STUDENT"
	Staff   Variant = "STAFF"
)

// Identity is one master record keyed by registration number.
type Identity struct {
	RegNo      string `json:"regNo"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// ErrNotFound is returned when a regNo exists in neither master table.
var ErrNotFound = errors.New("identity not found")

// Store is the master-table contract. Lookup searches students before staff;
// the two tables share one logical keyspace even though nothing enforces it.
type Store interface {
	Lookup(ctx context.Context, regNo string) (Identity, Variant, error)
	Upsert(ctx context.Context, id Identity, variant Variant) error
	// DeleteMany removes each regNo from both tables unconditionally and
	// returns the count of regNos processed, not the count actually found.
	DeleteMany(ctx context.Context, regNos []string) (int, error)
	List(ctx context.Context, variant Variant) ([]Identity, error)
}

// Classify routes a not-yet-registered regNo to a master table by naming
// convention: staff registration numbers start with a letter, student ones
// with a digit. Never consulted once the identity actually exists.
func Classify(regNo string) Variant {
	for _, r := range regNo {
		if unicode.IsLetter(r) {
			return Staff
		}
		return Student
	}
	return Student
}
