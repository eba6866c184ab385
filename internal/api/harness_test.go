package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"glowbook/internal/booking"
	"glowbook/internal/config"
	"glowbook/internal/database"
	"glowbook/internal/repository"
	"glowbook/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-0123456789"
	providerID   = "6f1d3b7e-2c4a-4e8b-9a51-0c7d2e3f4a5b"
	clientID     = "0b9c8d7e-6f5a-4b3c-8d2e-1f0a9b8c7d6e"
	otherClient  = "5a4b3c2d-1e0f-4a9b-8c7d-6e5f4a3b2c1d"
	bookingDate  = "2025-06-02"
	outsideRange = "2025-06-20"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type apiHarness struct {
	t        *testing.T
	db       *database.DB
	server   *HTTPServer
	ts       *httptest.Server
	services Services
}

func testAPIConfig() *config.APIConfig {
	return &config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth:    config.APIAuthConfig{Enabled: true, JWTSecret: testSecret},
	}
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServices(db *database.DB) Services {
	logger := zerolog.New(io.Discard)
	clock := func() time.Time { return testNow }

	cache := repository.NewMemoryCacheRepository(time.Minute)
	availability := service.NewAvailabilityService(db, db, cache, service.AvailabilityConfig{
		Location:       time.UTC,
		MaxBookingDays: 14,
		Clock:          clock,
	}, &logger)
	catalog := service.NewCatalogService(db, &logger).WithProviders(db)
	validator := booking.NewValidator(availability, catalog, availability, booking.ValidatorConfig{
		Location:       time.UTC,
		MaxBookingDays: 14,
		Clock:          clock,
	})

	return Services{
		Availability: availability,
		Catalog:      catalog,
		Providers:    service.NewProviderService(db, availability, &logger),
		Bookings:     service.NewBookingService(db, validator, booking.NewLifecycle(clock), nil, nil, &logger),
		Reviews:      service.NewReviewService(db, db, &logger),
		Location:     time.UTC,
		Ready:        db.PingContext,
	}
}

func newAPIHarness(t *testing.T, cfg *config.APIConfig, customize func(*Services)) *apiHarness {
	t.Helper()
	if cfg == nil {
		cfg = testAPIConfig()
	}
	db := newTestDB(t)
	svc := newTestServices(db)
	if customize != nil {
		customize(&svc)
	}

	logger := zerolog.New(io.Discard)
	server := NewHTTPServer(cfg, svc, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &apiHarness{t: t, db: db, server: server, ts: ts, services: svc}
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	claims := Claims{
		AppRole: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// do sends a request and returns the status code and raw body.
func (h *apiHarness) do(method, path, token string, body any) (int, []byte) {
	h.t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.ts.URL+path, reader)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, data
}

func (h *apiHarness) decode(data []byte, dst any) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(data, dst), string(data))
}

// seedProvider opens 09:00-12:00 on bookingDate and publishes one service.
func (h *apiHarness) seedProvider() int64 {
	h.t.Helper()
	token := signToken(h.t, providerID, "provider")

	code, body := h.do(http.MethodPut, "/api/v1/me/availability", token,
		`{"`+bookingDate+`": ["09:00 - 12:00"]}`)
	require.Equal(h.t, http.StatusOK, code, string(body))

	code, body = h.do(http.MethodPost, "/api/v1/services", token, map[string]any{
		"title":            "Haircut",
		"category":         "hair",
		"price":            40,
		"duration_minutes": 60,
	})
	require.Equal(h.t, http.StatusCreated, code, string(body))

	var svc struct {
		ID int64 `json:"id"`
	}
	h.decode(body, &svc)
	return svc.ID
}
