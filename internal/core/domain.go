package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Entry is one recorded expense. Category is a name snapshot: renaming
	// a category never rewrites entries that already carry the old name.
	Entry struct {
		ID          int64
		Owner       string // identity that created the entry
		Category    string
		Description string
		Amount      Money
		Date        time.Time
	}

	// Category is a labeled bucket entries reference by name.
	Category struct {
		ID    int64
		Owner string
		Name  string
		Group string // optional higher-level grouping
	}

	// Role is a named capability.
	Role struct {
		ID          int64
		Name        string
		Description string
	}

	// RoleAssignment associates an identity with a role.
	RoleAssignment struct {
		ID       int64
		UserID   string
		RoleID   int64
		RoleName string
	}

	// Identity is an authenticated user principal.
	Identity struct {
		ID    string
		Email string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingOwner     = errors.New("missing owner")
	ErrInvalidDate      = errors.New("invalid date")
	ErrCategoryInUse    = errors.New("category still referenced by entries")
	ErrNotFound         = errors.New("not found")
)

// StoreStatus is the load state of a per-owner store. A failed refresh keeps
// the previous list so the view renders stale data with a banner instead of
// dropping it.
type StoreStatus int

const (
	StoreLoading StoreStatus = iota
	StoreReady
	StoreFailed
)

func (s StoreStatus) String() string {
	switch s {
	case StoreLoading:
		return "loading"
	case StoreReady:
		return "ready"
	case StoreFailed:
		return "failed"
	}
	return "unknown"
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Owner) == "" {
		return ErrMissingOwner
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return ErrMissingOwner
	}
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

// Year returns the entry's calendar year.
func (e Entry) Year() int {
	return e.Date.Year()
}

// Month returns the entry's month, 1-indexed.
func (e Entry) Month() int {
	return int(e.Date.Month())
}

const (
	// DateTimeLayout is the minute-resolution form value layout.
	DateTimeLayout = "2006-01-02T15:04"
	// DateLayout is the day-resolution form value layout.
	DateLayout = "2006-01-02"
)

// ParseEntryDate accepts both the minute-resolution and day-resolution
// form layouts.
func ParseEntryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}
