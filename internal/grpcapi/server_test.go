package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"giftwrap/internal/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeAvailability struct {
	lastQuery booking.MaxItemsQuery
}

func (f *fakeAvailability) AvailableSlots(_ context.Context, date, workerID string) ([]string, error) {
	if date == "bad" {
		return nil, &booking.ValidationError{Fields: map[string]string{"date": "expected YYYY-MM-DD"}}
	}
	if workerID == "anna" {
		return []string{"10:00"}, nil
	}
	return []string{"09:00", "11:00"}, nil
}

func (f *fakeAvailability) IsDateBookable(_ context.Context, date, _ string) (bool, error) {
	return date == "2024-01-02", nil
}

func (f *fakeAvailability) MaxItemsForSlot(_ context.Context, q booking.MaxItemsQuery) (int, error) {
	f.lastQuery = q
	return 4, nil
}

func startServer(t *testing.T, svc Availability, apiKey string) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, apiKey, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAvailability_RoundTrip(t *testing.T) {
	svc := &fakeAvailability{}
	client := NewClient(startServer(t, svc, "secret"), "secret")
	ctx := testContext(t)

	slots, err := client.AvailableSlots(ctx, "2024-01-02", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, slots)

	slots, err = client.AvailableSlots(ctx, "2024-01-02", "anna")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)

	ok, err := client.IsDateBookable(ctx, "2024-01-02", "")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := client.MaxItemsForSlot(ctx, "2024-01-02", "09:00", "classic", "anna")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, booking.MaxItemsQuery{Date: "2024-01-02", Time: "09:00", ServiceID: "classic", WorkerID: "anna"}, svc.lastQuery)
}

func TestAvailability_Errors(t *testing.T) {
	conn := startServer(t, &fakeAvailability{}, "secret")
	ctx := testContext(t)

	_, err := NewClient(conn, "wrong").AvailableSlots(ctx, "2024-01-02", "")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = NewClient(conn, "secret").AvailableSlots(ctx, "bad", "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	conn := startServer(t, &fakeAvailability{}, "secret")

	resp, err := healthpb.NewHealthClient(conn).Check(testContext(t), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
