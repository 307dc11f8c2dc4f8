package ledger

import (
	"context"
	"errors"
	"time"
)

// UserType tags an entry with the identity variant known at scan time.
type UserType string

const (
	Student UserType = "STUDENT"
	Staff   UserType = "STAFF"
	Unknown UserType = "UNKNOWN"
)

// Entry is one check-in/check-out record. Name is nil for entries logged
// against a regNo that was not in the master tables at scan time; the
// resolution engine is the only writer that fills it in afterwards.
type Entry struct {
	ID           string     `json:"id"`
	RegNo        string     `json:"regNo"`
	Name         *string    `json:"name"`
	Department   *string    `json:"department"`
	UserType     UserType   `json:"userType"`
	CheckInTime  time.Time  `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
}

// Open reports whether the entry has not been checked out yet.
func (e Entry) Open() bool { return e.CheckOutTime == nil }

var (
	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("ledger entry not found")
	// ErrAlreadyClosed is returned when closing an entry whose check-out
	// time is already set; a set check-out time never changes.
	ErrAlreadyClosed = errors.New("ledger entry already closed")
)

// Store is the ledger contract. FindOpen is the hot path of every scan and
// must be indexed; at most one open entry exists per regNo at any instant.
type Store interface {
	FindOpen(ctx context.Context, regNo string) (*Entry, error)
	Create(ctx context.Context, e Entry) (Entry, error)
	Close(ctx context.Context, id string, at time.Time) (Entry, error)
	CloseAllOpen(ctx context.Context, at time.Time) (int, error)
	FindByRegNo(ctx context.Context, regNo string) ([]Entry, error)
	FindUnresolved(ctx context.Context) ([]Entry, error)
	// ResolveUnknown fills identity fields on every entry of regNo whose
	// name is still null, and only those; returns the rows touched.
	ResolveUnknown(ctx context.Context, regNo, name, department string, userType UserType) (int64, error)
	List(ctx context.Context) ([]Entry, error)
	ListOpen(ctx context.Context) ([]Entry, error)
}
