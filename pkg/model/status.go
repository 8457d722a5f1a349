package model

import "fmt"

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusOrder = []Status{StatusSent, StatusDelivered, StatusRead}

func (s Status) rank() int {
	for i, v := range statusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool { return s.rank() >= 0 }

// Prev returns the only status from which s may be reached. Sent has none.
func (s Status) Prev() (Status, bool) {
	r := s.rank()
	if r <= 0 {
		return "", false
	}
	return statusOrder[r-1], true
}

// Next returns the status immediately after s. Read is terminal.
func (s Status) Next() (Status, bool) {
	r := s.rank()
	if r < 0 || r == len(statusOrder)-1 {
		return "", false
	}
	return statusOrder[r+1], true
}

// CanAdvance reports whether to is exactly one step after from.
func CanAdvance(from, to Status) bool {
	next, ok := from.Next()
	return ok && next == to
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}
