package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

const MaxClientNameLength = 100

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ClientName  string    `bun:"client_name,notnull" json:"clientName"`
	ClientEmail string    `bun:"client_email,notnull" json:"clientEmail"`
	ServiceName string    `bun:"service_name,notnull" json:"serviceName"`
	StartTime   time.Time `bun:"start_time,notnull" json:"startTime"`
	EndTime     time.Time `bun:"end_time,notnull" json:"endTime"`
	Status      Status    `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		if a.Status == "" {
			a.Status = StatusScheduled
		}
	}
	return nil
}

// Active reports whether the appointment still occupies its interval.
func (a Appointment) Active() bool {
	return a.Status.Active()
}

// Overlaps reports whether the appointment's interval intersects [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return Overlaps(a.StartTime, a.EndTime, start, end)
}

// Overlaps treats both intervals as half-open, so touching endpoints do not
// overlap.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
