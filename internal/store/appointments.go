package store

import (
	"context"

	"booking/internal/domain"
)

type AppointmentRepository interface {
	// ListActive returns every non-canceled appointment ordered by start time.
	ListActive(ctx context.Context) ([]domain.Appointment, error)

	// InCalendarTransaction runs fn atomically. Implementations serialize
	// calendar transactions so that a check followed by a write inside fn
	// cannot interleave with another transaction's writes.
	InCalendarTransaction(ctx context.Context, fn func(ctx context.Context, tx CalendarTx) error) error
}
