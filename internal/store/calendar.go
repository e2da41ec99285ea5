package store

import (
	"context"
	"time"

	"booking/internal/domain"
)

// CalendarTx is the view of the calendar available inside a schedule
// transaction. Every call observes the writes made earlier in the same
// transaction and nothing written concurrently by other transactions.
type CalendarTx interface {
	ListActive(ctx context.Context) ([]domain.Appointment, error)
	Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	FindByID(ctx context.Context, id int64) (domain.Appointment, error)
	AnyOverlapping(ctx context.Context, start, end time.Time) (bool, error)
	SetStatus(ctx context.Context, id int64, status domain.Status) error
}
