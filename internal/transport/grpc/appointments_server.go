package grpc

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"booking/internal/domain"
	"booking/internal/service/appointments"
	"booking/internal/store"
	"booking/internal/transport/requestid"
)

const conflictMessage = "That time overlaps an existing appointment. Pick a different slot."

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

var _ AppointmentsServiceServer = (*AppointmentsServer)(nil)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]domain.Appointment, error)
}

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) rpcLogger(ctx context.Context, rpc string) *slog.Logger {
	log := s.log.With(slog.String("rpc", rpc))
	if id := requestid.FromContext(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	return log
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpcLogger(ctx, "CreateAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	start, err := timeField(req, "start_time")
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_start_time"))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	end, err := timeField(req, "end_time")
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_end_time"))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	appt, err := s.svc.Create(ctx, appointments.CreateInput{
		ClientName:  stringField(req, "client_name"),
		ClientEmail: stringField(req, "client_email"),
		ServiceName: stringField(req, "service_name"),
		StartTime:   start,
		EndTime:     end,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info(
				"appointment create conflict",
				slog.Time("start_time", start),
				slog.Time("end_time", end),
			)
			return nil, status.Error(codes.FailedPrecondition, conflictMessage)
		}
		return nil, s.errorStatus(log, "appointment create failed", err)
	}

	log.Info(
		"appointment created",
		slog.Int64("appointment_id", appt.ID),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)

	out, err := structpb.NewStruct(map[string]any{
		"appointment_id": appt.ID,
		"appointment":    appointmentFields(appt),
	})
	if err != nil {
		log.Error("response encoding failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := s.rpcLogger(ctx, "ListAppointments")

	appts, err := s.svc.ListActive(ctx)
	if err != nil {
		return nil, s.errorStatus(log, "appointments list failed", err)
	}

	items := make([]any, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentFields(a))
	}

	log.Debug("appointments listed", slog.Int("count", len(items)))

	out, err := structpb.NewStruct(map[string]any{"appointments": items})
	if err != nil {
		log.Error("response encoding failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.rpcLogger(ctx, "CancelAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := idField(req, "appointment_id")
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_appointment_id"))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.svc.Cancel(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("appointment not found", slog.Int64("appointment_id", id))
			return nil, status.Error(codes.NotFound, "appointment not found")
		}
		return nil, s.errorStatus(log, "appointment cancel failed", err)
	}

	log.Info("appointment canceled", slog.Int64("appointment_id", id))
	return &emptypb.Empty{}, nil
}

// errorStatus maps the engine error taxonomy onto gRPC codes.
func (s *AppointmentsServer) errorStatus(log *slog.Logger, msg string, err error) error {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, appointments.ErrInvalidInterval):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrConflict):
		return status.Error(codes.FailedPrecondition, conflictMessage)
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "appointment not found")
	case errors.Is(err, store.ErrUnavailable):
		log.Error(msg, slog.Any("err", err))
		return status.Error(codes.Unavailable, "storage temporarily unavailable")
	default:
		log.Error(msg, slog.Any("err", err))
		return status.Error(codes.Internal, "internal error")
	}
}

func appointmentFields(a domain.Appointment) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"client_name":  a.ClientName,
		"client_email": a.ClientEmail,
		"service_name": a.ServiceName,
		"start_time":   a.StartTime.UTC().Format(time.RFC3339Nano),
		"end_time":     a.EndTime.UTC().Format(time.RFC3339Nano),
		"status":       a.Status.String(),
		"created_at":   a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

// timeField returns the zero time for an absent field so the engine reports
// it as missing.
func timeField(req *structpb.Struct, name string) (time.Time, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return time.Time{}, nil
	}
	raw, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return time.Time{}, errors.New(name + " must be an RFC 3339 timestamp")
	}
	if strings.TrimSpace(raw.StringValue) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw.StringValue))
	if err != nil {
		return time.Time{}, errors.New(name + " must be an RFC 3339 timestamp")
	}
	return t, nil
}

func idField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, errors.New(name + " is required")
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, errors.New(name + " must be an integer")
		}
		return int64(n), nil
	case *structpb.Value_StringValue:
		id, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 64)
		if err != nil {
			return 0, errors.New(name + " must be an integer")
		}
		return id, nil
	default:
		return 0, errors.New(name + " must be an integer")
	}
}
