package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventhub/internal/config"
	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/testutil"

	"github.com/gin-gonic/gin"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiClient struct {
	t       *testing.T
	engine  *gin.Engine
	db      *gorm.DB
	metrics *metrics.Metrics
}

func newClient(t *testing.T) *apiClient {
	t.Helper()
	cfg := config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}}
	gdb := testutil.NewDB(t)
	m := metrics.New()
	return &apiClient{t: t, engine: New(cfg, gdb, m, zerolog.Nop()), db: gdb, metrics: m}
}

func (a *apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Authorization", token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error_message"]
}

// signUp registers and logs in a user, returning its id and token.
func (a *apiClient) signUp(first, email string) (uint, string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users", "", map[string]string{
		"first_name": first,
		"last_name":  "Test",
		"email":      email,
		"password":   "Passw0rd!",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": "Passw0rd!"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		UserID       uint   `json:"user_id"`
		SessionToken string `json:"session_token"`
	}](a.t, rec)
	return out.UserID, out.SessionToken
}

func eventBody(name string, maxAttendees int) map[string]any {
	now := time.Now()
	return map[string]any{
		"name":               name,
		"description":        "A *great* event",
		"location":           "Hall",
		"start":              now.Add(48 * time.Hour).UnixMilli(),
		"close_registration": now.Add(24 * time.Hour).UnixMilli(),
		"max_attendees":      maxAttendees,
	}
}

func (a *apiClient) createEvent(token, name string, maxAttendees int) uint {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/events", token, eventBody(name, maxAttendees))
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]uint](a.t, rec)["event_id"]
}

func TestIndexHealthAndNotFound(t *testing.T) {
	api := newClient(t)

	rec := api.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())

	rec = api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = api.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", errorMessage(t, rec))

	rec = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eventhub_http_requests_total")
}

func TestUserRegistrationAndLogin(t *testing.T) {
	api := newClient(t)

	id, token := api.signUp("Ada", "ada@example.com")
	assert.NotZero(t, id)
	assert.Len(t, token, 32)

	rec := api.do(http.MethodPost, "/users", "", map[string]string{
		"first_name": "Ada", "last_name": "Again", "email": "ada@example.com", "password": "Passw0rd!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already in use", errorMessage(t, rec))

	rec = api.do(http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, token, decode[map[string]any](t, rec)["session_token"])

	rec = api.do(http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email or password", errorMessage(t, rec))

	rec = api.do(http.MethodGet, fmt.Sprintf("/users/%d", id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"user_id":%d,"first_name":"Ada","last_name":"Test","email":"ada@example.com"}`, id), rec.Body.String())

	rec = api.do(http.MethodGet, "/users/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/users/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user ID", errorMessage(t, rec))
}

func TestUserValidationMessages(t *testing.T) {
	api := newClient(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"bad email", map[string]string{"first_name": "A", "last_name": "B", "email": "nope", "password": "Passw0rd!"}, `"email" must be a valid email`},
		{"weak password", map[string]string{"first_name": "A", "last_name": "B", "email": "a@b.com", "password": "password"}, `"password" must be 8 to 18`},
		{"missing name", map[string]string{"last_name": "B", "email": "a@b.com", "password": "Passw0rd!"}, `"first_name" is required`},
		{"unknown field", map[string]string{"first_name": "A", "last_name": "B", "email": "a@b.com", "password": "Passw0rd!", "role": "admin"}, `"role" is not allowed`},
		{"not json", "{", "Request body must be valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/users", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.HasPrefix(errorMessage(t, rec), tt.want), errorMessage(t, rec))
		})
	}
}

func TestLogout(t *testing.T) {
	api := newClient(t)
	_, token := api.signUp("Ada", "ada@example.com")

	rec := api.do(http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/events", token, eventBody("x", 1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventLifecycle(t *testing.T) {
	api := newClient(t)
	hostID, host := api.signUp("Host", "host@example.com")
	guestID, guest := api.signUp("Guest", "guest@example.com")

	rec := api.do(http.MethodPost, "/events", "", eventBody("Party", 2))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	eventID := api.createEvent(host, "Party", 2)
	path := fmt.Sprintf("/events/%d", eventID)

	rec = api.do(http.MethodPost, path, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, path, guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You are already registered", errorMessage(t, rec))

	rec = api.do(http.MethodPost, path, host, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Creator sees attendees.
	rec = api.do(http.MethodGet, path, host, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	asHost := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, asHost["number_attending"])
	assert.NotContains(t, asHost, "isAttending")
	attendees := asHost["attendees"].([]any)
	require.Len(t, attendees, 1)
	assert.EqualValues(t, guestID, attendees[0].(map[string]any)["user_id"])
	assert.EqualValues(t, hostID, asHost["creator"].(map[string]any)["creator_id"])
	assert.Contains(t, asHost["description_html"], "<em>great</em>")

	// Guest sees attendance flag only.
	rec = api.do(http.MethodGet, fmt.Sprintf("/event/%d", eventID), guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	asGuest := decode[map[string]any](t, rec)
	assert.Equal(t, true, asGuest["isAttending"])
	assert.NotContains(t, asGuest, "attendees")

	rec = api.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["isAttending"])

	// Update.
	rec = api.do(http.MethodPatch, path, guest, map[string]string{"name": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You can only update your own events", errorMessage(t, rec))

	rec = api.do(http.MethodPatch, path, host, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "At least one field must be provided")

	rec = api.do(http.MethodPatch, path, host, map[string]string{"location": "Garden"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cancel.
	rec = api.do(http.MethodDelete, path, guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, path, host, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, path, "", nil)
	detail := decode[map[string]any](t, rec)
	assert.EqualValues(t, -1, detail["close_registration"])
	assert.Equal(t, "Garden", detail["location"])

	_, late := api.signUp("Late", "late@example.com")
	rec = api.do(http.MethodPost, path, late, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Registration is closed", errorMessage(t, rec))

	rec = api.do(http.MethodGet, "/events/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEventValidation(t *testing.T) {
	api := newClient(t)
	_, host := api.signUp("Host", "host@example.com")

	body := eventBody("Backwards", 5)
	body["close_registration"] = body["start"].(int64) + 1
	rec := api.do(http.MethodPost, "/events", host, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Registration must close before the start time", errorMessage(t, rec))

	body = eventBody("No start", 5)
	delete(body, "start")
	rec = api.do(http.MethodPost, "/events", host, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"start" is required`, errorMessage(t, rec))

	body = eventBody("Wrong type", 5)
	body["max_attendees"] = "lots"
	rec = api.do(http.MethodPost, "/events", host, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"max_attendees" must be a number`, errorMessage(t, rec))
}

func TestConcurrentRegistrationForLastSeat(t *testing.T) {
	api := newClient(t)
	_, host := api.signUp("Host", "host@example.com")
	eventID := api.createEvent(host, "One seat", 1)

	const n = 6
	tokens := make([]string, n)
	for i := range tokens {
		_, tokens[i] = api.signUp(fmt.Sprintf("U%d", i), fmt.Sprintf("u%d@example.com", i))
	}

	codes := make([]int, n)
	var g errgroup.Group
	for i, token := range tokens {
		g.Go(func() error {
			codes[i] = api.do(http.MethodPost, fmt.Sprintf("/events/%d", eventID), token, nil).Code
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusForbidden, code)
		}
	}
	assert.Equal(t, 1, ok)

	rec := api.do(http.MethodGet, fmt.Sprintf("/events/%d", eventID), host, nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["number_attending"])
}

func TestSearch(t *testing.T) {
	api := newClient(t)
	hostID, host := api.signUp("Host", "host@example.com")
	_, guest := api.signUp("Guest", "guest@example.com")
	first := api.createEvent(host, "Board games", 5)
	api.createEvent(host, "Book club", 5)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, fmt.Sprintf("/events/%d", first), guest, nil).Code)

	rec := api.do(http.MethodGet, "/search?q=BOARD", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[[]map[string]any](t, rec)
	require.Len(t, results, 1)
	assert.Equal(t, "Board games", results[0]["name"])
	assert.Equal(t, "Host", results[0]["creator"].(map[string]any)["first_name"])

	rec = api.do(http.MethodGet, "/search?status=ATTENDING", guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = api.do(http.MethodGet, "/search?status=MY_EVENTS", host, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = api.do(http.MethodGet, "/search?status=MY_EVENTS", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Authentication required for this status filter", errorMessage(t, rec))

	rec = api.do(http.MethodGet, "/search?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Limit must be between 1 and 100", errorMessage(t, rec))

	rec = api.do(http.MethodGet, "/search?offset=-2", "", nil)
	assert.Equal(t, "Offset must be non-negative", errorMessage(t, rec))

	rec = api.do(http.MethodGet, "/search?status=LATER", "", nil)
	assert.Equal(t, "Invalid status parameter", errorMessage(t, rec))

	rec = api.do(http.MethodGet, "/search?q=zzz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	// Registration deadline already passed, event not cancelled.
	past := testutil.CreateEvent(t, api.db, hostID, "Past quiz", 5)
	require.NoError(t, api.db.Model(&models.Event{}).Where("id = ?", past.ID).
		Update("close_registration", time.Now().Add(-time.Hour).UnixMilli()).Error)

	names := func(status string) []string {
		rec := api.do(http.MethodGet, "/search?status="+status, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, e := range decode[[]map[string]any](t, rec) {
			out = append(out, e["name"].(string))
		}
		return out
	}
	assert.ElementsMatch(t, []string{"Board games", "Book club"}, names("OPEN"))
	assert.Equal(t, []string{"Past quiz"}, names("ARCHIVE"))
}

func TestStoreOutageDuringAuthIsServerError(t *testing.T) {
	api := newClient(t)
	_, token := api.signUp("Ada", "ada@example.com")

	sqlDB, err := api.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	for _, path := range []string{"/question/user", "/search"} {
		rec := api.do(http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Equal(t, "Server Error", errorMessage(t, rec), path)
	}
}

func TestPanicIsCountedInMetrics(t *testing.T) {
	api := newClient(t)
	api.engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := api.do(http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server Error", errorMessage(t, rec))
	assert.Equal(t, 1.0, promtest.ToFloat64(api.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500")))
}

func TestQuestionsAndVotes(t *testing.T) {
	api := newClient(t)
	_, host := api.signUp("Host", "host@example.com")
	guestID, guest := api.signUp("Guest", "guest@example.com")
	_, outsider := api.signUp("Out", "out@example.com")
	eventID := api.createEvent(host, "Talk", 5)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, fmt.Sprintf("/events/%d", eventID), guest, nil).Code)

	askPath := fmt.Sprintf("/event/%d/question", eventID)

	rec := api.do(http.MethodPost, askPath, host, map[string]string{"question": "Mine?"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You cannot ask questions on your own events", errorMessage(t, rec))

	rec = api.do(http.MethodPost, askPath, outsider, map[string]string{"question": "Me?"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, askPath, guest, map[string]string{"question": "Slides?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	questionID := decode[map[string]uint](t, rec)["question_id"]
	votePath := fmt.Sprintf("/question/%d/vote", questionID)

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, votePath, outsider, nil).Code)
	rec = api.do(http.MethodDelete, votePath, outsider, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You have already voted on this question", errorMessage(t, rec))
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, votePath, host, nil).Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/events/%d", eventID), "", nil)
	questions := decode[map[string]any](t, rec)["questions"].([]any)
	require.Len(t, questions, 1)
	q := questions[0].(map[string]any)
	assert.EqualValues(t, 2, q["votes"])
	assert.EqualValues(t, guestID, q["asked_by"].(map[string]any)["user_id"])

	rec = api.do(http.MethodGet, "/question/user", guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]map[string]any](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "Talk", mine[0]["event_name"])

	rec = api.do(http.MethodDelete, fmt.Sprintf("/question/%d", questionID), outsider, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodDelete, fmt.Sprintf("/question/%d", questionID), host, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, votePath, guest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	api := newClient(t)

	rec := api.do(http.MethodOptions, "/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
