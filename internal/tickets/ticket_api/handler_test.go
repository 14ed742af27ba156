package ticket_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-event-tickets/internal/auth"
	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"
	"ms-event-tickets/internal/testutil"
	ticketdb "ms-event-tickets/internal/tickets/db"
	"ms-event-tickets/internal/tickets/qr"
	tickets "ms-event-tickets/internal/tickets/service"
	"ms-event-tickets/internal/tickets/ticket_api"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	router http.Handler
	db     *bun.DB
	qr     *qr.QRGenerator
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, io.Discard, nil)
}

func newTestServerWith(t *testing.T, logOut io.Writer, protect func(http.Handler) http.Handler) *testServer {
	t.Helper()
	bunDB := testutil.NewSQLiteDB(t)
	log := logger.NewWithWriter(logOut)
	svc := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, tickets.WithLogger(log))
	qrGen := qr.NewQRGenerator("test-secret")

	r := chi.NewRouter()
	ticket_api.NewHandler(svc, qrGen, log).RegisterRoutes(r, protect)
	return &testServer{router: r, db: bunDB, qr: qrGen}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func decodeTicket(t *testing.T, env envelope) models.Ticket {
	t.Helper()
	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	return ticket
}

func TestIssueTicketHandler(t *testing.T) {
	s := newTestServer(t)
	event := testutil.SeedEvent(t, s.db, 1, 0)

	rr, env := s.do(t, http.MethodPost, "/tickets", map[string]interface{}{
		"event_id":   event.ID,
		"owner_name": "Linus",
		"price":      30,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, env.Success)

	ticket := decodeTicket(t, env)
	assert.Equal(t, event.ID, ticket.EventID)
	assert.Equal(t, models.TicketStatusAvailable, ticket.Status)
	assert.NotEmpty(t, ticket.Code)
	assert.Equal(t, 30.0, ticket.Price)

	rr, env = s.do(t, http.MethodPost, "/tickets", map[string]string{"event_id": event.ID}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, models.ErrCapacityExhausted.Error())
}

func TestIssueTicketHandlerErrors(t *testing.T) {
	s := newTestServer(t)
	event := testutil.SeedEvent(t, s.db, 3, 0)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed json", `{"event_id":`, http.StatusBadRequest},
		{"missing event id", map[string]string{}, http.StatusBadRequest},
		{"blank owner", map[string]string{"event_id": event.ID, "owner_name": "  "}, http.StatusBadRequest},
		{"negative price", map[string]interface{}{"event_id": event.ID, "price": -5}, http.StatusBadRequest},
		{"sub-cent price", map[string]interface{}{"event_id": event.ID, "price": 10.999}, http.StatusBadRequest},
		{"malformed event id", map[string]string{"event_id": "does-not-exist"}, http.StatusBadRequest},
		{"unknown event", map[string]string{"event_id": uuid.NewString()}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := s.do(t, http.MethodPost, "/tickets", tt.body, nil)
			assert.Equal(t, tt.status, rr.Code)
			assert.False(t, env.Success)
		})
	}

	assert.Zero(t, testutil.ReloadEvent(t, s.db, event.ID).SoldCount)
}

func TestViewAndListTickets(t *testing.T) {
	s := newTestServer(t)
	event := testutil.SeedEvent(t, s.db, 5, 0)

	rr, env := s.do(t, http.MethodGet, "/tickets", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	_, env = s.do(t, http.MethodPost, "/tickets", map[string]string{"event_id": event.ID}, nil)
	issued := decodeTicket(t, env)

	rr, env = s.do(t, http.MethodGet, "/tickets/"+issued.ID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	viewed := decodeTicket(t, env)
	assert.Equal(t, issued.Code, viewed.Code)
	require.NotNil(t, viewed.Event)
	assert.Equal(t, event.Name, viewed.Event.Name)

	rr, env = s.do(t, http.MethodGet, "/tickets", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Event)
	assert.Equal(t, event.ID, list[0].Event.ID)

	rr, _ = s.do(t, http.MethodGet, "/tickets/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, env = s.do(t, http.MethodGet, "/tickets/missing", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid ticket id", env.Message)

	rr, env = s.do(t, http.MethodGet, "/tickets/count", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"total_count":1}`, string(env.Data))
}

func TestTicketQRAndValidate(t *testing.T) {
	s := newTestServer(t)
	event := testutil.SeedEvent(t, s.db, 2, 0)

	_, env := s.do(t, http.MethodPost, "/tickets", map[string]string{"event_id": event.ID}, nil)
	issued := decodeTicket(t, env)

	rr, _ := s.do(t, http.MethodGet, "/tickets/"+issued.ID+"/qr", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))

	rr, _ = s.do(t, http.MethodGet, "/tickets/"+issued.ID+"/pdf", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

	rr, _ = s.do(t, http.MethodGet, "/tickets/"+uuid.NewString()+"/pdf", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = s.do(t, http.MethodGet, "/tickets/missing/qr", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	encrypted, err := s.qr.EncryptTicket(issued)
	require.NoError(t, err)

	rr, env = s.do(t, http.MethodPost, "/tickets/validate", map[string]string{"encrypted_qr": encrypted}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validated := decodeTicket(t, env)
	assert.Equal(t, models.TicketStatusValidated, validated.Status)
	assert.NotNil(t, validated.ValidationDate)

	rr, _ = s.do(t, http.MethodPost, "/tickets/validate", map[string]string{"code": issued.Code}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/tickets/validate", map[string]string{"code": "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/tickets/validate", map[string]string{"encrypted_qr": "garbage"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/tickets/validate", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelTicketHandler(t *testing.T) {
	s := newTestServer(t)
	event := testutil.SeedEvent(t, s.db, 1, 0)

	_, env := s.do(t, http.MethodPost, "/tickets", map[string]string{"event_id": event.ID}, nil)
	issued := decodeTicket(t, env)

	rr, env := s.do(t, http.MethodPost, "/tickets/"+issued.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.TicketStatusCancelled, decodeTicket(t, env).Status)
	assert.Zero(t, testutil.ReloadEvent(t, s.db, event.ID).SoldCount)

	rr, _ = s.do(t, http.MethodPost, "/tickets/"+issued.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/tickets/"+uuid.NewString()+"/cancel", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/tickets/missing/cancel", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelLogsUnverifiedActor(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServerWith(t, &logs, auth.Identify)
	event := testutil.SeedEvent(t, s.db, 1, 0)

	_, env := s.do(t, http.MethodPost, "/tickets", map[string]string{"event_id": event.ID}, nil)
	issued := decodeTicket(t, env)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "scanner-7"}).SignedString([]byte("any"))
	require.NoError(t, err)

	rr, _ := s.do(t, http.MethodPost, "/tickets/"+issued.ID+"/cancel", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, logs.String(), "by unverified:scanner-7")
}

func TestProtectedRoutesUseMiddleware(t *testing.T) {
	bunDB := testutil.NewSQLiteDB(t)
	log := logger.NewWithWriter(io.Discard)
	svc := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB})
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}

	r := chi.NewRouter()
	ticket_api.NewHandler(svc, qr.NewQRGenerator("k"), log).RegisterRoutes(r, deny)

	for _, path := range []string{"/tickets", "/tickets/validate", "/tickets/x/cancel"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tickets", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

type failingService struct {
	ticket_api.TicketService
	err error
}

func (f failingService) Issue(context.Context, tickets.IssueRequest) (*models.Ticket, error) {
	return nil, f.err
}

func TestIssuanceFailureHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused to 10.0.0.5")
	svc := failingService{err: errors.Join(models.ErrIssuanceFailed, cause)}

	r := chi.NewRouter()
	ticket_api.NewHandler(svc, qr.NewQRGenerator("k"), logger.NewWithWriter(io.Discard)).RegisterRoutes(r, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/tickets", bytes.NewBufferString(`{"event_id":"`+uuid.NewString()+`"}`)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
	assert.Contains(t, rr.Body.String(), models.ErrIssuanceFailed.Error())
}

func TestIssueErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrEventNotFound, http.StatusNotFound},
		{models.ErrCapacityExhausted, http.StatusConflict},
		{models.ErrIssuanceInProgress, http.StatusConflict},
		{models.ErrIdempotencyKeyReused, http.StatusConflict},
		{models.ErrInvalidPrice, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := chi.NewRouter()
			svc := failingService{err: fmt.Errorf("wrapped: %w", tt.err)}
			ticket_api.NewHandler(svc, qr.NewQRGenerator("k"), logger.NewWithWriter(io.Discard)).RegisterRoutes(r, nil)

			rr := httptest.NewRecorder()
			body := bytes.NewBufferString(`{"event_id":"` + uuid.NewString() + `"}`)
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/tickets", body))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
