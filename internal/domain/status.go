package domain

import "fmt"

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCanceled  Status = "Canceled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Active reports whether appointments in this status take part in overlap
// checks. Unknown values are treated as active so they can never free a slot.
func (s Status) Active() bool {
	switch s {
	case StatusCanceled:
		return false
	case StatusScheduled, StatusCompleted:
		return true
	}
	return true
}

// Terminal reports whether no operation transitions out of the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCanceled, StatusCompleted:
		return true
	case StatusScheduled:
		return false
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
