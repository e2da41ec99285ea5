// Package memory implements the appointment store in process memory.
//
// A single mutex guards the calendar. Calendar transactions hold it for
// their whole duration and work on a staged copy that is published only when
// the transaction function returns nil.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booking/internal/domain"
	"booking/internal/store"
)

type Option func(*Store)

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type Store struct {
	mu     sync.Mutex
	rows   map[int64]domain.Appointment
	nextID int64
	now    func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		rows:   make(map[int64]domain.Appointment),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return listActive(s.rows), nil
}

func (s *Store) InCalendarTransaction(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &calendarTx{
		rows:   make(map[int64]domain.Appointment, len(s.rows)+1),
		nextID: s.nextID,
		now:    s.now,
	}
	for id, a := range s.rows {
		tx.rows[id] = a
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	s.rows = tx.rows
	s.nextID = tx.nextID
	return nil
}

type calendarTx struct {
	rows   map[int64]domain.Appointment
	nextID int64
	now    func() time.Time
}

func (t *calendarTx) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	return listActive(t.rows), nil
}

func (t *calendarTx) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, unavailable(err)
	}

	appt.ID = t.nextID
	t.nextID++
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = t.now()
	}
	if appt.Status == "" {
		appt.Status = domain.StatusScheduled
	}
	if appt.Active() {
		for _, existing := range t.rows {
			if existing.Active() && existing.Overlaps(appt.StartTime, appt.EndTime) {
				return domain.Appointment{}, store.ErrConflict
			}
		}
	}

	t.rows[appt.ID] = appt
	return appt, nil
}

func (t *calendarTx) FindByID(ctx context.Context, id int64) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, unavailable(err)
	}
	a, ok := t.rows[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *calendarTx) AnyOverlapping(ctx context.Context, start, end time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable(err)
	}
	for _, a := range t.rows {
		if a.Active() && a.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (t *calendarTx) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	a, ok := t.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	t.rows[id] = a
	return nil
}

func listActive(rows map[int64]domain.Appointment) []domain.Appointment {
	out := make([]domain.Appointment, 0, len(rows))
	for _, a := range rows {
		if a.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}
