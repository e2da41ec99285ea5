package appointments

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking/internal/domain"
	"booking/internal/store"
)

var ErrInvalidInterval = errors.New("end_time must be after start_time")

type ValidationError struct {
	Field string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

type Option func(*Service)

// WithStoreTimeout bounds each store interaction when the caller's context
// carries no deadline of its own.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.storeTimeout = d
	}
}

type Service struct {
	repo         store.AppointmentRepository
	validate     *validator.Validate
	tracer       trace.Tracer
	storeTimeout time.Duration
}

func NewService(repo store.AppointmentRepository, opts ...Option) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("field"); name != "" {
			return name
		}
		return fld.Name
	})

	s := &Service{
		repo:     repo,
		validate: v,
		tracer:   otel.Tracer("booking/internal/service/appointments"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	ClientName  string `field:"client_name" validate:"required,max=100"`
	ClientEmail string `field:"client_email" validate:"required,email"`
	ServiceName string `field:"service_name" validate:"required"`
	StartTime   time.Time
	EndTime     time.Time
}

// Create books a new Scheduled appointment. The overlap check and the insert
// run inside one calendar transaction, so of two concurrent requests for the
// same slot exactly one succeeds.
func (s *Service) Create(ctx context.Context, in CreateInput) (_ domain.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Create")
	defer func() { endSpan(span, err) }()

	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.ServiceName = strings.TrimSpace(in.ServiceName)

	if err := s.validateInput(in); err != nil {
		return domain.Appointment{}, err
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time", "start_time is required")
	}
	if in.EndTime.IsZero() {
		return domain.Appointment{}, validationError("end_time", "end_time is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !end.After(start) {
		return domain.Appointment{}, ErrInvalidInterval
	}
	span.SetAttributes(
		attribute.String("appointment.start_time", start.Format(time.RFC3339)),
		attribute.String("appointment.end_time", end.Format(time.RFC3339)),
	)

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	var created domain.Appointment
	err = s.repo.InCalendarTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		overlap, err := tx.AnyOverlapping(ctx, start, end)
		if err != nil {
			return err
		}
		if overlap {
			return store.ErrConflict
		}
		created, err = tx.Insert(ctx, domain.Appointment{
			ClientName:  in.ClientName,
			ClientEmail: in.ClientEmail,
			ServiceName: in.ServiceName,
			StartTime:   start,
			EndTime:     end,
			Status:      domain.StatusScheduled,
		})
		return err
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	span.SetAttributes(attribute.Int64("appointment.id", created.ID))
	return created, nil
}

// Cancel marks the appointment Canceled. Cancelling an already canceled
// appointment succeeds without further change.
func (s *Service) Cancel(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Cancel", trace.WithAttributes(attribute.Int64("appointment.id", id)))
	defer func() { endSpan(span, err) }()

	if id <= 0 {
		return store.ErrNotFound
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.repo.InCalendarTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		if _, err := tx.FindByID(ctx, id); err != nil {
			return err
		}
		return tx.SetStatus(ctx, id, domain.StatusCanceled)
	})
}

func (s *Service) ListActive(ctx context.Context) (_ []domain.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.ListActive")
	defer func() { endSpan(span, err) }()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("appointments.count", len(rows)))
	return rows, nil
}

func (s *Service) validateInput(in CreateInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("", err.Error())
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return validationError(fe.Field(), fe.Field()+" is required")
	case "max":
		return validationError(fe.Field(), fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	case "email":
		return validationError(fe.Field(), fe.Field()+" must be a valid email address")
	default:
		return validationError(fe.Field(), fe.Field()+" is invalid")
	}
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
