package grpc

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"booking/internal/domain"
	"booking/internal/service/appointments"
	"booking/internal/store"
	"booking/internal/store/memory"
	"booking/internal/transport/requestid"
)

type fakeAppointmentsService struct {
	createFn     func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	cancelFn     func(ctx context.Context, id int64) error
	listActiveFn func(ctx context.Context) ([]domain.Appointment, error)
}

func (f *fakeAppointmentsService) Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeAppointmentsService) Cancel(ctx context.Context, id int64) error {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, id)
}

func (f *fakeAppointmentsService) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	if f.listActiveFn == nil {
		panic("ListActive not configured")
	}
	return f.listActiveFn(ctx)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return s
}

func createRequest(t *testing.T) *structpb.Struct {
	return mustStruct(t, map[string]any{
		"client_name":  "Ana",
		"client_email": "ana@example.com",
		"service_name": "Haircut",
		"start_time":   "2026-01-01T10:00:00Z",
		"end_time":     "2026-01-01T11:00:00Z",
	})
}

func TestCreateAppointment_RejectsMalformedTimes(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())

	req := createRequest(t)
	req.Fields["start_time"] = structpb.NewStringValue("tomorrow at ten")

	_, err := srv.CreateAppointment(context.Background(), req)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateAppointment_PassesFieldsToService(t *testing.T) {
	var got appointments.CreateInput
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		createFn: func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
			got = in
			return domain.Appointment{ID: 12, StartTime: in.StartTime, EndTime: in.EndTime, Status: domain.StatusScheduled}, nil
		},
	}, slog.Default())

	resp, err := srv.CreateAppointment(context.Background(), createRequest(t))
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if got.ClientName != "Ana" || got.ClientEmail != "ana@example.com" || got.ServiceName != "Haircut" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if !got.StartTime.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("start_time = %v", got.StartTime)
	}
	if id := resp.GetFields()["appointment_id"].GetNumberValue(); id != 12 {
		t.Fatalf("appointment_id = %v, want 12", id)
	}
}

func TestCreateAppointment_MapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "validation", err: &appointments.ValidationError{}, want: codes.InvalidArgument},
		{name: "interval", err: appointments.ErrInvalidInterval, want: codes.InvalidArgument},
		{name: "conflict", err: store.ErrConflict, want: codes.FailedPrecondition},
		{name: "unavailable", err: store.ErrUnavailable, want: codes.Unavailable},
		{name: "other", err: context.Canceled, want: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewAppointmentsServer(&fakeAppointmentsService{
				createFn: func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
					return domain.Appointment{}, tt.err
				},
			}, slog.Default())

			_, err := srv.CreateAppointment(context.Background(), createRequest(t))
			if status.Code(err) != tt.want {
				t.Fatalf("code = %s, want %s", status.Code(err), tt.want)
			}
		})
	}
}

func TestCancelAppointment_ParsesID(t *testing.T) {
	var got []int64
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		cancelFn: func(ctx context.Context, id int64) error {
			got = append(got, id)
			return nil
		},
	}, slog.Default())

	for _, v := range []any{float64(5), "6"} {
		if _, err := srv.CancelAppointment(context.Background(), mustStruct(t, map[string]any{"appointment_id": v})); err != nil {
			t.Fatalf("CancelAppointment(%v) error: %v", v, err)
		}
	}
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("canceled ids = %v, want [5 6]", got)
	}

	// float64(math.MaxInt64) rounds up to 2^63, which does not fit in an int64.
	for _, v := range []any{1.5, "abc", true, 9.223372036854775808e18, 1e19, -1e19} {
		_, err := srv.CancelAppointment(context.Background(), mustStruct(t, map[string]any{"appointment_id": v}))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("CancelAppointment(%v) code = %s, want %s", v, status.Code(err), codes.InvalidArgument)
		}
	}

	_, err := srv.CancelAppointment(context.Background(), mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing id code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCancelAppointment_MapsNotFound(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		cancelFn: func(ctx context.Context, id int64) error {
			return store.ErrNotFound
		},
	}, slog.Default())

	_, err := srv.CancelAppointment(context.Background(), mustStruct(t, map[string]any{"appointment_id": float64(9999)}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.NotFound)
	}
}

func TestListAppointments_MapsUnavailable(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		listActiveFn: func(ctx context.Context) ([]domain.Appointment, error) {
			return nil, store.ErrUnavailable
		},
	}, slog.Default())

	_, err := srv.ListAppointments(context.Background(), &emptypb.Empty{})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unavailable)
	}
}

func TestRequestIDInterceptor_AdoptsIncomingID(t *testing.T) {
	interceptor := RequestIDInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestid.MetadataKey, "abc-123"))
	var seen string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		seen = requestid.FromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if seen != "abc-123" {
		t.Fatalf("request id = %q, want %q", seen, "abc-123")
	}
}

func TestDefaultRequestTimeoutInterceptor_SetsDeadline(t *testing.T) {
	interceptor := DefaultRequestTimeoutInterceptor(time.Minute)

	var hasDeadline bool
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		_, hasDeadline = ctx.Deadline()
		return nil, nil
	})
	if !hasDeadline {
		t.Fatalf("expected deadline on handler context")
	}
}

func dialBufconn(t *testing.T) *AppointmentsServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RequestIDInterceptor(),
		DefaultRequestTimeoutInterceptor(5*time.Second),
	))
	svc := appointments.NewService(memory.NewStore())
	RegisterAppointmentsServiceServer(server, NewAppointmentsServer(svc, slog.Default()))

	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return NewAppointmentsServiceClient(conn)
}

func TestAppointmentsService_RoundTrip(t *testing.T) {
	client := dialBufconn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var header metadata.MD
	created, err := client.CreateAppointment(ctx, createRequest(t), grpc.Header(&header))
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if len(header.Get(requestid.MetadataKey)) == 0 {
		t.Fatalf("expected %s response header", requestid.MetadataKey)
	}
	id := created.GetFields()["appointment_id"].GetNumberValue()
	if id <= 0 {
		t.Fatalf("appointment_id = %v, want positive", id)
	}

	overlapping := createRequest(t)
	overlapping.Fields["start_time"] = structpb.NewStringValue("2026-01-01T10:30:00Z")
	overlapping.Fields["end_time"] = structpb.NewStringValue("2026-01-01T11:30:00Z")
	_, err = client.CreateAppointment(ctx, overlapping)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("overlap code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}

	list, err := client.ListAppointments(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	items := list.GetFields()["appointments"].GetListValue().GetValues()
	if len(items) != 1 {
		t.Fatalf("len(appointments) = %d, want 1", len(items))
	}
	if got := items[0].GetStructValue().GetFields()["status"].GetStringValue(); got != "Scheduled" {
		t.Fatalf("status = %q, want Scheduled", got)
	}

	if _, err := client.CancelAppointment(ctx, mustStruct(t, map[string]any{"appointment_id": id})); err != nil {
		t.Fatalf("CancelAppointment error: %v", err)
	}
	_, err = client.CancelAppointment(ctx, mustStruct(t, map[string]any{"appointment_id": float64(9999)}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("cancel unknown code = %s, want %s", status.Code(err), codes.NotFound)
	}

	list, err = client.ListAppointments(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if n := len(list.GetFields()["appointments"].GetListValue().GetValues()); n != 0 {
		t.Fatalf("len(appointments) after cancel = %d, want 0", n)
	}
}
