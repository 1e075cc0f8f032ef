package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/terranova-labs/listingd/pkg/auth"
	"github.com/terranova-labs/listingd/pkg/config"
	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/seed"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testSettings() *config.Settings {
	s := config.Default()
	s.Environment = config.EnvTesting
	s.SessionSecret = "test-session-secret"
	return s
}

func newTestServer(t *testing.T, settings *config.Settings, opts ...Option) (*Server, *database.Store) {
	t.Helper()
	store := database.New()
	_, err := seed.LoadDefault(store)
	require.NoError(t, err)
	if settings == nil {
		settings = testSettings()
	}
	opts = append([]Option{
		WithClock(func() time.Time { return testTime }),
		WithReseed(seed.LoadDefault),
	}, opts...)
	return New(store, settings, opts...), store
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertEnvelope(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.False(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, code, gjson.Get(body, "error_code").String())
	assert.NotEmpty(t, gjson.Get(body, "message").String())
	assert.NotEmpty(t, gjson.Get(body, "timestamp").String())
}

func TestPing(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"pong","timestamp":"2025-03-14T09:26:53.000000Z"}`, rec.Body.String())
}

func TestPing_WrongMethod(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := do(t, s.Handler(), method, "/api/ping", "")
			assertEnvelope(t, rec, http.StatusMethodNotAllowed, "HTTP_405")
			assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)
		})
	}
}

func TestMetaEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "Listing Backend", gjson.Get(body, "app_name").String())
	assert.Equal(t, "1.0.0", gjson.Get(body, "version").String())
	assert.Equal(t, "testing", gjson.Get(body, "environment").String())
	assert.Equal(t, "/api", gjson.Get(body, "api_prefix").String())
	assert.Equal(t, "/api/ping", gjson.Get(body, "endpoints.health_check").String())
	assert.Equal(t, "/api/health", gjson.Get(body, "endpoints.detailed_health").String())
	assert.Equal(t, "/docs", gjson.Get(body, "endpoints.documentation").String())

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/favicon.ico", "")
	assert.JSONEq(t, `{"message":"No favicon configured"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/health", "")
	assert.JSONEq(t, `{"message":"healthy","timestamp":"2025-03-14T09:26:53.000000Z"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/nope/deeper/still", "")
	assertEnvelope(t, rec, http.StatusNotFound, "HTTP_404")

	rec = do(t, s.Handler(), http.MethodDelete, "/api/users", "")
	assertEnvelope(t, rec, http.StatusMethodNotAllowed, "HTTP_405")
}

func TestUnknownCollection(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/api/widgets", ""},
		{http.MethodPost, "/api/widgets", `{"a":1}`},
		{http.MethodGet, "/api/widgets/1", ""},
		{http.MethodDelete, "/api/widgets/1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assertEnvelope(t, rec, http.StatusBadRequest, CodeUnknownCollection)
			assert.Contains(t, gjson.Get(rec.Body.String(), "message").String(), "widgets")
		})
	}
}

func TestListListings(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/listings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(24), gjson.Get(body, "total").Int())
	assert.Equal(t, int64(24), gjson.Get(body, "data.#").Int())
	assert.Equal(t, int64(100), gjson.Get(body, "limit").Int())
	assert.Equal(t, "187", gjson.Get(body, "data.0.id").String())
	assert.Equal(t, "London", gjson.Get(body, "data.0.addressDetails.city").String())
	assert.True(t, gjson.Get(body, "data.0.createdAt").Exists())
	assert.False(t, gjson.Get(body, "data.0.address_details").Exists())

	rec = do(t, h, http.MethodGet, "/api/listings?skip=2&limit=3", "")
	body = rec.Body.String()
	assert.Equal(t, int64(24), gjson.Get(body, "total").Int())
	assert.Equal(t, []string{"79", "80", "81"}, stringsOf(gjson.Get(body, "data.#.id")))

	rec = do(t, h, http.MethodGet, "/api/listings?skip=100", "")
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "data.#").Int())
}

func TestListFilters(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"nested dotted key", "addressDetails.region=London", 7},
		{"top level string", "propertyType=terraced", 3},
		{"number", "bedrooms=3", 5},
		{"combined", "addressDetails.region=London&bedrooms=3", 3},
		{"id stays a string", "id=187", 1},
		{"jsonpath", "$.addressDetails.city=Preston", 3},
		{"no match", "propertyType=castle", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/listings?"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, gjson.Get(rec.Body.String(), "total").Int())
		})
	}
}

func TestListFilters_LiteralStrings(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	for _, name := range []string{"12345", "true", "null"} {
		rec := do(t, h, http.MethodPost, "/api/users", `{"username":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, "/api/data", `{"count":12345}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/users?username=12345", []string{"12345"}},
		{"/api/users?username=true", []string{"true"}},
		{"/api/users?username=null", []string{"null"}},
		{"/api/users?username=nobody", nil},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := rec.Body.String()
			assert.Equal(t, int64(len(tt.want)), gjson.Get(body, "total").Int())
			assert.Equal(t, tt.want, stringsOf(gjson.Get(body, "data.#.username")))
		})
	}

	rec = do(t, h, http.MethodGet, "/api/data?count=12345", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "total").Int())
}

func TestListPaginationErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, q := range []string{"skip=-1", "skip=x", "limit=0", "limit=1001", "limit=abc"} {
		t.Run(q, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodGet, "/api/listings?"+q, "")
			assertEnvelope(t, rec, http.StatusBadRequest, "HTTP_400")
		})
	}
}

func TestUserCRUD(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/users", `{"username":"alice","email":"alice@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	userID := gjson.Get(body, "id").String()
	require.NotEmpty(t, userID)
	assert.Equal(t, "alice", gjson.Get(body, "username").String())
	assert.True(t, gjson.Get(body, "is_active").Bool())
	createdAt := gjson.Get(body, "created_at").String()
	assert.Equal(t, createdAt, gjson.Get(body, "updated_at").String())

	rec = do(t, h, http.MethodGet, "/api/users/"+userID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", gjson.Get(rec.Body.String(), "email").String())

	rec = do(t, h, http.MethodPut, "/api/users/"+userID, `{"username":"alice2","id":"hijack"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = rec.Body.String()
	assert.Equal(t, "alice2", gjson.Get(body, "username").String())
	assert.Equal(t, userID, gjson.Get(body, "id").String())
	assert.Equal(t, createdAt, gjson.Get(body, "created_at").String())
	assert.Equal(t, "alice@example.com", gjson.Get(body, "email").String())

	rec = do(t, h, http.MethodPatch, "/api/users/"+userID, `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, gjson.Get(rec.Body.String(), "is_active").Bool())

	rec = do(t, h, http.MethodGet, "/api/users?is_active=false", "")
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "total").Int())

	rec = do(t, h, http.MethodDelete, "/api/users/"+userID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "success").Bool())
	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "message").String())

	rec = do(t, h, http.MethodDelete, "/api/users/"+userID, "")
	assertEnvelope(t, rec, http.StatusNotFound, "HTTP_404")

	rec = do(t, h, http.MethodGet, "/api/users/"+userID, "")
	assertEnvelope(t, rec, http.StatusNotFound, "HTTP_404")

	rec = do(t, h, http.MethodPut, "/api/users/"+userID, `{"username":"bob"}`)
	assertEnvelope(t, rec, http.StatusNotFound, "HTTP_404")
}

func TestCreate_BodyErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/users", `{"username":`)
	assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidJSON)

	rec = do(t, h, http.MethodPost, "/api/users", `[1,2]`)
	assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidJSON)

	rec = do(t, h, http.MethodPost, "/api/users", "")
	assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidJSON)

	rec = do(t, h, http.MethodPost, "/api/users", `{"username":"al","email":"nope"}`)
	assertEnvelope(t, rec, http.StatusUnprocessableEntity, CodeValidation)
	fields := stringsOf(gjson.Get(rec.Body.String(), "details.errors.#.field"))
	assert.Equal(t, []string{"email", "username"}, fields)
}

func TestCreateListing(t *testing.T) {
	s, store := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/listings", `{
		"addressDetails": {"addressLine1": "1 High Street", "city": "Leeds", "postcode": "LS1 1AA", "country": "England", "region": "North East"},
		"propertyType": "terraced",
		"bedrooms": 2,
		"bathrooms": 1,
		"priceInCents": 15000000
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "Leeds", gjson.Get(body, "addressDetails.city").String())
	assert.False(t, gjson.Get(body, "isFeatured").Bool())
	assert.True(t, gjson.Get(body, "photos").IsArray())

	stored, err := store.GetByID(database.CollectionListings, gjson.Get(body, "id").String())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "terraced", stored["property_type"])

	rec = do(t, h, http.MethodPost, "/api/listings", `{"propertyType":"castle"}`)
	assertEnvelope(t, rec, http.StatusUnprocessableEntity, CodeValidation)
}

func TestCreateSession_MintsToken(t *testing.T) {
	tokens := auth.NewTokenIssuer("test-session-secret", time.Hour)
	s, _ := newTestServer(t, nil, WithTokenIssuer(tokens))

	rec := do(t, s.Handler(), http.MethodPost, "/api/sessions", `{"user_id":"u-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "is_valid").Bool())

	claims, err := tokens.Verify(gjson.Get(body, "session_token").String())
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)

	expiresAt, err := database.ParseTime(gjson.Get(body, "expires_at").String())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
}

func TestCreateSession_KeepsClientToken(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/api/sessions",
		`{"user_id":"u-1","session_token":"abc","expires_at":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "abc", gjson.Get(body, "session_token").String())
	assert.Equal(t, "2030-01-01T00:00:00.000000Z", gjson.Get(body, "expires_at").String())
}

func TestDataCollectionAcceptsAnyObject(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/data", `{"kind":"note","tags":["a","b"],"n":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/data?kind=note&n=3", "")
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "total").Int())
}

func TestListingSearch(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		expr string
		want int64
	}{
		{`addressDetails.region == "London" && bedrooms >= 3`, 3},
		{`propertyType == "terraced"`, 3},
		{`priceInCents >= 100000000`, 4},
		{`addressDetails.city in ["Preston", "Dover"]`, 4},
		{`false`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/listings/search?q="+urlEscape(tt.expr), "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, gjson.Get(rec.Body.String(), "total").Int())
		})
	}
	assert.Equal(t, len(tests), s.programs.len())
}

func TestListingSearch_Errors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/listings/search", "")
	assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidExpression)

	rec = do(t, h, http.MethodGet, "/api/listings/search?q="+urlEscape("bedrooms >="), "")
	assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidExpression)

	rec = do(t, h, http.MethodGet, "/api/listings/search?q="+urlEscape("bedrooms + 1"), "")
	assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidExpression)
}

func TestDatabaseEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/database/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(24), gjson.Get(body, "total_records").Int())
	assert.Equal(t, int64(24), gjson.Get(body, "record_counts.listings").Int())
	assert.Equal(t, []string{"data", "listings", "sessions", "users"}, sortedStrings(gjson.Get(body, "collections")))

	rec = do(t, h, http.MethodGet, "/api/database/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.String()
	assert.Equal(t, int64(24), gjson.Get(exported, "listings.#").Int())
	assert.Equal(t, "London", gjson.Get(exported, "listings.0.address_details.city").String())

	rec = do(t, h, http.MethodPost, "/api/database/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "data.total_records").Int())

	rec = do(t, h, http.MethodPost, "/api/database/import", exported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(24), gjson.Get(rec.Body.String(), "data.record_counts.listings").Int())

	rec = do(t, h, http.MethodGet, "/api/listings/187", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/database/reset?reseed=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(24), gjson.Get(rec.Body.String(), "data.record_counts.listings").Int())

	rec = do(t, h, http.MethodPost, "/api/database/reset?reseed=maybe", "")
	assertEnvelope(t, rec, http.StatusBadRequest, "HTTP_400")
}

func TestDatabaseReset_ReseedFailureKeepsStore(t *testing.T) {
	failing := func(st *database.Store) (int, error) {
		if _, err := seed.LoadDefault(st); err != nil {
			return 0, err
		}
		// a second pass collides on every listing id
		return seed.LoadDefault(st)
	}
	s, store := newTestServer(t, nil, WithReseed(failing))
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/users", `{"username":"keeper"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/database/reset?reseed=true", "")
	assertEnvelope(t, rec, http.StatusInternalServerError, CodeInternal)

	users, err := store.GetAll(database.CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	listings, err := store.GetAll(database.CollectionListings)
	require.NoError(t, err)
	assert.Len(t, listings, 24)
}

func TestDatabaseReset_ReseedReplacesStore(t *testing.T) {
	s, store := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/users", `{"username":"temporary"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/database/reset?reseed=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, gjson.Get(rec.Body.String(), "message").String(), "24 listings")

	status := store.Status()
	assert.Equal(t, 0, status.RecordCounts[database.CollectionUsers])
	assert.Equal(t, 24, status.RecordCounts[database.CollectionListings])
}

func TestDatabaseImport_Invalid(t *testing.T) {
	s, store := newTestServer(t, nil)
	h := s.Handler()

	for _, body := range []string{
		`{"widgets":[]}`,
		`{"users":"nope"}`,
		`{"users":[{"id":"1"}]}`,
	} {
		rec := do(t, h, http.MethodPost, "/api/database/import", body)
		assertEnvelope(t, rec, http.StatusBadRequest, CodeInvalidSnapshot)
	}

	assert.Equal(t, 24, store.Status().RecordCounts[database.CollectionListings])
}

func TestAPIKeyGuard(t *testing.T) {
	settings := testSettings()
	settings.APIKeyRequired = true
	settings.APIKey = "secret-key-123"
	s, _ := newTestServer(t, settings)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/listings", "")
	assertEnvelope(t, rec, http.StatusUnauthorized, "HTTP_401")

	rec = do(t, h, http.MethodGet, "/api/listings", "", APIKeyHeader, "short")
	assertEnvelope(t, rec, http.StatusUnauthorized, "HTTP_401")

	rec = do(t, h, http.MethodGet, "/api/listings", "", APIKeyHeader, "wrong-key-456")
	assertEnvelope(t, rec, http.StatusUnauthorized, "HTTP_401")

	rec = do(t, h, http.MethodGet, "/api/listings", "", APIKeyHeader, "secret-key-123")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/listings", "", "Authorization", "Bearer secret-key-123")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyGuard_SessionToken(t *testing.T) {
	settings := testSettings()
	settings.APIKeyRequired = true
	settings.APIKey = "secret-key-123"
	s, _ := newTestServer(t, settings)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/sessions", `{"user_id":"u-7"}`, APIKeyHeader, "secret-key-123")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := gjson.Get(rec.Body.String(), "id").String()
	token := gjson.Get(rec.Body.String(), "session_token").String()
	require.NotEmpty(t, token)

	rec = do(t, h, http.MethodGet, "/api/listings", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// signed by another server
	other := auth.NewTokenIssuer("other-secret", time.Hour)
	forged, err := other.Issue("u-7", time.Now().Add(time.Hour))
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/listings", "", "Authorization", "Bearer "+forged)
	assertEnvelope(t, rec, http.StatusUnauthorized, "HTTP_401")

	rec = do(t, h, http.MethodPatch, "/api/sessions/"+sessionID, `{"is_valid":false}`, APIKeyHeader, "secret-key-123")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodGet, "/api/listings", "", "Authorization", "Bearer "+token)
	assertEnvelope(t, rec, http.StatusUnauthorized, "HTTP_401")

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+sessionID, "", APIKeyHeader, "secret-key-123")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/listings", "", "Authorization", "Bearer "+token)
	assertEnvelope(t, rec, http.StatusUnauthorized, "HTTP_401")
}

func TestRateLimit(t *testing.T) {
	settings := testSettings()
	settings.RateLimit = 1
	settings.RateLimitBurst = 2
	s, _ := newTestServer(t, settings)
	t.Cleanup(s.Close)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/ping", "").Code)

	rec := do(t, h, http.MethodGet, "/api/ping", "")
	assertEnvelope(t, rec, http.StatusTooManyRequests, "HTTP_429")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodOptions, "/api/listings", "",
		"Origin", "https://app.example.com",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	settings := testSettings()
	settings.CORSOrigins = []string{"https://allowed.example.com"}
	settings.CORSAllowCredentials = false
	s, _ = newTestServer(t, settings)

	rec = do(t, s.Handler(), http.MethodGet, "/api/ping", "", "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s.Handler(), http.MethodGet, "/api/ping", "", "Origin", "https://allowed.example.com")
	assert.Equal(t, "https://allowed.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 16)

	rec = do(t, s.Handler(), http.MethodGet, "/health", "", RequestIDHeader, "abc")
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := do(t, h, http.MethodGet, "/anything", "")
	assertEnvelope(t, rec, http.StatusInternalServerError, CodeInternal)
	assert.Equal(t, ErrMsgInternal, gjson.Get(rec.Body.String(), "message").String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	do(t, h, http.MethodGet, "/api/ping", "")
	do(t, h, http.MethodGet, "/api/widgets", "")

	assert.Equal(t, float64(1), s.Metrics().RequestsTotal.Value(http.MethodGet, "GET /api/ping", "200"))
	assert.Equal(t, float64(1), s.Metrics().ErrorsTotal.Value(CodeUnknownCollection))

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `listingd_records{collection="listings"} 24`)
	assert.Contains(t, rec.Body.String(), "listingd_http_requests_total")
}

func TestOpenAPIDocument(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Listing Backend", doc.Info.Title)
	for _, path := range []string{"/api/ping", "/api/listings", "/api/listings/{id}", "/api/listings/search", "/api/database/status"} {
		assert.NotNil(t, doc.Paths.Value(path), path)
	}
	assert.Contains(t, doc.Components.Schemas, "ListingsRecord")

	rec = do(t, h, http.MethodGet, "/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), OpenAPIPath)
	assert.Contains(t, rec.Body.String(), "GET /api/ping")
}

func TestRunListener(t *testing.T) {
	settings := testSettings()
	settings.MaxConnections = 4
	s, _ := newTestServer(t, settings)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
