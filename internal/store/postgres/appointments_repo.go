package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"booking/internal/domain"
	"booking/internal/store"
)

const DefaultCalendarKey = "booking:calendar"

type AppointmentRepo struct {
	db          *bun.DB
	calendarKey string
}

// NewAppointmentRepo returns a repository whose calendar transactions are
// serialized on an advisory lock derived from calendarKey.
func NewAppointmentRepo(db *bun.DB, calendarKey string) *AppointmentRepo {
	if calendarKey == "" {
		calendarKey = DefaultCalendarKey
	}
	return &AppointmentRepo{db: db, calendarKey: calendarKey}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	rows, err := listActive(ctx, r.db)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (r *AppointmentRepo) InCalendarTransaction(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, r.calendarKey); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
	return classify(err)
}

func lockCalendar(ctx context.Context, tx bun.Tx, key string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func listActive(ctx context.Context, db bun.IDB) ([]domain.Appointment, error) {
	rows := make([]domain.Appointment, 0)
	err := db.NewSelect().
		Model(&rows).
		Where("status <> ?", domain.StatusCanceled).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	return listActive(ctx, r.tx)
}

func (r calendarTx) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ClientName:  appt.ClientName,
		ClientEmail: appt.ClientEmail,
		ServiceName: appt.ServiceName,
		StartTime:   appt.StartTime,
		EndTime:     appt.EndTime,
		Status:      appt.Status,
		CreatedAt:   appt.CreatedAt,
	}

	_, err := r.tx.NewInsert().Model(&m).Returning("id").Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r calendarTx) FindByID(ctx context.Context, id int64) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r calendarTx) AnyOverlapping(ctx context.Context, start, end time.Time) (bool, error) {
	return r.tx.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("status <> ?", domain.StatusCanceled).
		Where("start_time < ?", end).
		Where("end_time > ?", start).
		Exists(ctx)
}

func (r calendarTx) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	res, err := r.tx.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
