package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"glowbook/internal/config"
	"glowbook/internal/models"
	"glowbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type mockAvailability struct{ mock.Mock }

func (m *mockAvailability) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error) {
	args := m.Called(ctx, providerID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Interval), args.Error(1)
}

func (m *mockAvailability) FreeSlots(ctx context.Context, providerID, date string) ([]models.Slot, error) {
	args := m.Called(ctx, providerID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Slot), args.Error(1)
}

func (m *mockAvailability) BookableDates(ctx context.Context, providerID string) ([]string, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func grpcTestConfig() *config.APIConfig {
	return &config.APIConfig{
		Enabled: true,
		GRPC:    config.APIGRPCConfig{Enabled: true, Reflection: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "partner", Extra: "secret", Permissions: []string{permReadAvailability}},
			},
		},
	}
}

func startBufconn(t *testing.T, reader availabilityReader) (*GRPCServer, *grpc.ClientConn) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	s, err := newGRPCServer(grpcTestConfig(), reader, &logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.server.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, conn
}

func partnerContext() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "partner", "x-api-extra", "secret")
}

func TestGRPCAvailabilityService(t *testing.T) {
	reader := new(mockAvailability)
	_, conn := startBufconn(t, reader)
	client := NewAvailabilityClient(conn)

	t.Run("GetAvailability", func(t *testing.T) {
		reader.On("GetAvailability", mock.Anything, providerID, bookingDate).
			Return([]models.Interval{{Start: models.MustTimeOfDay("09:00"), End: models.MustTimeOfDay("12:00")}}, nil).Once()

		var header metadata.MD
		resp, err := client.GetAvailability(partnerContext(), &AvailabilityRequest{ProviderID: providerID, Date: bookingDate}, grpc.Header(&header))
		require.NoError(t, err)
		assert.Equal(t, providerID, resp.ProviderID)
		require.Len(t, resp.Intervals, 1)
		assert.Equal(t, "09:00", resp.Intervals[0].Start.String())
		assert.NotEmpty(t, header.Get(requestIDMetadataKey))
	})

	t.Run("EmptyDayIsNotNull", func(t *testing.T) {
		reader.On("GetAvailability", mock.Anything, providerID, "2025-06-03").Return(nil, nil).Once()

		resp, err := client.GetAvailability(partnerContext(), &AvailabilityRequest{ProviderID: providerID, Date: "2025-06-03"})
		require.NoError(t, err)
		assert.NotNil(t, resp.Intervals)
		assert.Empty(t, resp.Intervals)
	})

	t.Run("InvalidDate", func(t *testing.T) {
		_, err := client.GetAvailability(partnerContext(), &AvailabilityRequest{ProviderID: providerID, Date: "02.06.2025"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("MissingProvider", func(t *testing.T) {
		_, err := client.GetBookableDates(partnerContext(), &BookableDatesRequest{})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("BookableDates", func(t *testing.T) {
		reader.On("BookableDates", mock.Anything, providerID).Return([]string{"2025-06-02", "2025-06-04"}, nil).Once()

		resp, err := client.GetBookableDates(partnerContext(), &BookableDatesRequest{ProviderID: providerID})
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-06-02", "2025-06-04"}, resp.Dates)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		reader.On("BookableDates", mock.Anything, "broken").Return(nil, errors.New("disk I/O error")).Once()

		_, err := client.GetBookableDates(partnerContext(), &BookableDatesRequest{ProviderID: "broken"})
		assert.Equal(t, codes.Internal, status.Code(err))
	})

	t.Run("FreeSlotsNeedsPermission", func(t *testing.T) {
		_, err := client.GetFreeSlots(partnerContext(), &AvailabilityRequest{ProviderID: providerID, Date: bookingDate})
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := client.GetAvailability(context.Background(), &AvailabilityRequest{ProviderID: providerID, Date: bookingDate})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Health", func(t *testing.T) {
		resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
			&healthpb.HealthCheckRequest{Service: availabilityServiceName})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
	})

	reader.AssertExpectations(t)
}

func TestGRPCFreeSlots(t *testing.T) {
	reader := new(mockAvailability)
	svc := NewAvailabilityService(reader)

	reader.On("FreeSlots", mock.Anything, providerID, bookingDate).
		Return([]models.Slot{models.SlotAt(models.MustTimeOfDay("10:00"))}, nil).Once()
	resp, err := svc.GetFreeSlots(context.Background(), &AvailabilityRequest{ProviderID: providerID, Date: bookingDate})
	require.NoError(t, err)
	require.Len(t, resp.Slots, 1)
	assert.Equal(t, "10:00-11:00", resp.Slots[0].String())

	reader.On("FreeSlots", mock.Anything, providerID, "2025-02-30").
		Return(nil, fmt.Errorf("%w: bad date", service.ErrInvalidInput)).Once()
	_, err = svc.GetFreeSlots(context.Background(), &AvailabilityRequest{ProviderID: providerID, Date: "2025-02-30"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCServer_New(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cfg := config.APIConfig{GRPC: config.APIGRPCConfig{Port: 0}}

	s, err := NewGRPCServer(&cfg, new(mockAvailability), &logger)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Shutdown(ctx)
	assert.NoError(t, <-errCh)
}

func TestBuildTLSConfig(t *testing.T) {
	t.Run("EmptyPaths", func(t *testing.T) {
		_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
		assert.Error(t, err)
	})

	t.Run("InvalidCert", func(t *testing.T) {
		_, err := buildTLSConfig(config.APITLSConfig{
			Enabled:  true,
			CertFile: "/nonexistent",
			KeyFile:  "/nonexistent",
		})
		assert.Error(t, err)
	})
}

func TestLoadCertPool(t *testing.T) {
	_, err := loadCertPool("")
	assert.Error(t, err)

	_, err = loadCertPool("/nonexistent/ca.pem")
	assert.Error(t, err)

	notPEM := t.TempDir() + "/ca.pem"
	require.NoError(t, os.WriteFile(notPEM, []byte("not a certificate"), 0o600))
	_, err = loadCertPool(notPEM)
	assert.ErrorContains(t, err, "no PEM certificates")
}
