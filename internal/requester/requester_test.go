package requester

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"popup-client/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestRequester(t *testing.T, cfg Config) *Requester {
	t.Helper()
	return New(cfg, logger.NewTestLogger(t))
}

// startPopupServer runs an httptest server that answers POST /popup with
// the given status code and body, counting the requests it sees.
func startPopupServer(t *testing.T, statusCode int, responseBody string, hits *int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = io.WriteString(w, responseBody)
	}))
	t.Cleanup(server.Close)
	return server
}

func simpleDefinition() map[string]interface{} {
	return map[string]interface{}{
		"title": "Deploy?",
		"elements": []interface{}{
			map[string]interface{}{"check": "Confirm"},
		},
	}
}

// ==========================
// Auth Guard Tests
// ==========================

func TestShowPopup_MissingTokenSkipsNetwork(t *testing.T) {
	var hits int64
	server := startPopupServer(t, http.StatusOK, `{"status": "completed"}`, &hits)

	requester := createTestRequester(t, Config{AuthToken: "", Host: server.URL})
	result := requester.ShowPopup(context.Background(), simpleDefinition())

	assert.Equal(t, StatusError, result.Status())
	assert.Equal(t, "POPUP_AUTH_TOKEN environment variable not set", result.Message())
	assert.EqualValues(t, 0, atomic.LoadInt64(&hits), "no request may leave the process without a token")
}

// ==========================
// Round Trip Tests
// ==========================

func TestShowPopup_SendsExpectedRequest(t *testing.T) {
	type captured struct {
		authorization string
		contentType   string
		path          string
		body          map[string]interface{}
	}
	var got captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.authorization = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		got.path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		_, _ = io.WriteString(w, `{"status": "completed", "button": "ok"}`)
	}))
	t.Cleanup(server.Close)

	requester := createTestRequester(t, Config{AuthToken: "secret-token", Host: server.URL})
	result := requester.ShowPopupWithTimeout(context.Background(), simpleDefinition(), 1500)

	assert.Equal(t, StatusCompleted, result.Status())
	assert.Equal(t, "Bearer secret-token", got.authorization)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "/popup", got.path)
	assert.Equal(t, float64(1500), got.body["timeout_ms"])

	definition, ok := got.body["definition"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Deploy?", definition["title"])
}

func TestShowPopup_UsesConfiguredDefaultTimeout(t *testing.T) {
	tests := []struct {
		name              string
		configTimeoutMs   int
		expectedTimeoutMs float64
	}{
		{"zero config falls back to five minutes", 0, 300000},
		{"explicit config value is used", 2500, 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				_, _ = io.WriteString(w, `{"status": "completed"}`)
			}))
			t.Cleanup(server.Close)

			requester := createTestRequester(t, Config{
				AuthToken: "secret",
				Host:      server.URL,
				TimeoutMs: tt.configTimeoutMs,
			})
			requester.ShowPopup(context.Background(), simpleDefinition())

			assert.Equal(t, tt.expectedTimeoutMs, body["timeout_ms"])
		})
	}
}

func TestShowPopup_PassesEnvelopeThroughVerbatim(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		validate   func(t *testing.T, result Result)
	}{
		{
			name:       "completed with values",
			statusCode: http.StatusOK,
			body:       `{"status": "completed", "button": "ok", "volume": 80, "extra": {"nested": true}}`,
			validate: func(t *testing.T, result Result) {
				assert.Equal(t, StatusCompleted, result.Status())
				assert.Equal(t, "ok", result.Button())
				assert.Equal(t, float64(80), result["volume"])
				assert.Equal(t, map[string]interface{}{"nested": true}, result["extra"], "unknown fields survive")
			},
		},
		{
			name:       "cancelled",
			statusCode: http.StatusOK,
			body:       `{"status": "cancelled"}`,
			validate: func(t *testing.T, result Result) {
				assert.Equal(t, StatusCancelled, result.Status())
			},
		},
		{
			name:       "remote timeout stays a timeout",
			statusCode: http.StatusOK,
			body:       `{"status": "timeout", "message": "Popup timed out after 30000 ms"}`,
			validate: func(t *testing.T, result Result) {
				assert.Equal(t, StatusTimeout, result.Status())
				assert.Equal(t, "Popup timed out after 30000 ms", result.Message())
			},
		},
		{
			name:       "server error envelope on a 401 passes through",
			statusCode: http.StatusUnauthorized,
			body:       `{"status": "error", "message": "invalid auth token"}`,
			validate: func(t *testing.T, result Result) {
				assert.Equal(t, StatusError, result.Status())
				assert.Equal(t, "invalid auth token", result.Message())
			},
		},
		{
			name:       "500 with a JSON body passes through",
			statusCode: http.StatusInternalServerError,
			body:       `{"status": "error", "message": "popup backend exploded"}`,
			validate: func(t *testing.T, result Result) {
				assert.Equal(t, "popup backend exploded", result.Message())
			},
		},
		{
			name:       "object without a status passes through",
			statusCode: http.StatusOK,
			body:       `{"foo": "bar"}`,
			validate: func(t *testing.T, result Result) {
				assert.Equal(t, "", result.Status())
				assert.Equal(t, "bar", result["foo"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startPopupServer(t, tt.statusCode, tt.body, nil)
			requester := createTestRequester(t, Config{AuthToken: "secret", Host: server.URL})

			result := requester.ShowPopup(context.Background(), simpleDefinition())
			require.NotNil(t, result)
			tt.validate(t, result)
		})
	}
}

// ==========================
// Failure Mapping Tests
// ==========================

func TestShowPopup_TransportTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = io.WriteString(w, `{"status": "completed"}`)
	}))
	t.Cleanup(server.Close)

	requester := createTestRequester(t, Config{AuthToken: "secret", Host: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result := requester.ShowPopup(ctx, simpleDefinition())

	assert.Equal(t, StatusError, result.Status())
	assert.Equal(t, "Request timed out", result.Message())
}

func TestShowPopup_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close() // nothing listens here anymore

	requester := createTestRequester(t, Config{AuthToken: "secret", Host: host})
	result := requester.ShowPopup(context.Background(), simpleDefinition())

	assert.Equal(t, StatusError, result.Status())
	assert.Equal(t, "Cannot connect to popup server at "+host, result.Message())
}

func TestShowPopup_ContextCancelIsNotATimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	requester := createTestRequester(t, Config{AuthToken: "secret", Host: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	result := requester.ShowPopup(ctx, simpleDefinition())

	assert.Equal(t, StatusError, result.Status())
	assert.NotEqual(t, "Request timed out", result.Message())
	assert.Contains(t, result.Message(), "context canceled")
}

func TestShowPopup_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `invalid json {{{`},
		{"json number instead of object", `42`},
		{"json array instead of object", `["status"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startPopupServer(t, http.StatusOK, tt.body, nil)
			requester := createTestRequester(t, Config{AuthToken: "secret", Host: server.URL})

			result := requester.ShowPopup(context.Background(), simpleDefinition())

			assert.Equal(t, StatusError, result.Status())
			assert.NotEmpty(t, result.Message())
		})
	}
}

func TestShowPopup_NullResponseBody(t *testing.T) {
	server := startPopupServer(t, http.StatusOK, `null`, nil)
	requester := createTestRequester(t, Config{AuthToken: "secret", Host: server.URL})

	result := requester.ShowPopup(context.Background(), simpleDefinition())

	assert.Equal(t, StatusError, result.Status())
	assert.Contains(t, result.Message(), "null")
}

func TestShowPopup_EmptyHostStillYieldsEnvelope(t *testing.T) {
	requester := createTestRequester(t, Config{AuthToken: "secret", Host: ""})
	result := requester.ShowPopup(context.Background(), simpleDefinition())

	assert.Equal(t, StatusError, result.Status())
	assert.NotEmpty(t, result.Message())
}

func TestShowPopup_UnencodableDefinition(t *testing.T) {
	requester := createTestRequester(t, Config{AuthToken: "secret", Host: "http://localhost:1"})

	// Channels cannot be encoded as JSON.
	result := requester.ShowPopup(context.Background(), map[string]interface{}{
		"bad": make(chan int),
	})

	assert.Equal(t, StatusError, result.Status())
	assert.Contains(t, result.Message(), "unsupported type")
}

// ==========================
// Unit Tests
// ==========================

func TestTransportDeadline(t *testing.T) {
	tests := []struct {
		name      string
		timeoutMs int
		expected  time.Duration
	}{
		{"default five minutes", 300000, 305 * time.Second},
		{"thirty seconds", 30000, 35 * time.Second},
		{"sub-second timeout keeps the fraction", 1500, 6500 * time.Millisecond},
		{"zero floors at five seconds", 0, 5 * time.Second},
		{"negative floors at five seconds", -100, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, transportDeadline(tt.timeoutMs))
		})
	}
}

func TestResult_Accessors(t *testing.T) {
	result := Result{
		"status":  "completed",
		"button":  "ok",
		"message": "all good",
		"volume":  80.0,
		"theme":   "Dark",
	}

	assert.Equal(t, "completed", result.Status())
	assert.Equal(t, "ok", result.Button())
	assert.Equal(t, "all good", result.Message())
	assert.Equal(t, map[string]interface{}{"volume": 80.0, "theme": "Dark"}, result.Values())

	empty := Result{}
	assert.Equal(t, "", empty.Status())
	assert.Equal(t, "", empty.Message())
	assert.Equal(t, "", empty.Button())
	assert.Empty(t, empty.Values())

	// Non-string statuses read as absent rather than panicking.
	odd := Result{"status": 7}
	assert.Equal(t, "", odd.Status())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("POPUP_AUTH_TOKEN", "env-token")
	t.Setenv("HOST", "http://popups.internal:3000")

	cfg := FromEnv()

	assert.Equal(t, "env-token", cfg.AuthToken)
	assert.Equal(t, "http://popups.internal:3000", cfg.Host)
	assert.Equal(t, DefaultTimeoutMs, cfg.TimeoutMs)
}

func TestFromEnv_MissingVariables(t *testing.T) {
	t.Setenv("POPUP_AUTH_TOKEN", "")
	t.Setenv("HOST", "")

	cfg := FromEnv()

	assert.Empty(t, cfg.AuthToken)
	assert.Empty(t, cfg.Host)
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkShowPopup(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status": "completed", "button": "ok"}`)
	}))
	defer server.Close()

	requester := New(Config{AuthToken: "secret", Host: server.URL}, logger.NewNoOpLogger())
	definition := simpleDefinition()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = requester.ShowPopup(context.Background(), definition)
	}
}

func BenchmarkShowPopup_MissingToken(b *testing.B) {
	requester := New(Config{}, logger.NewNoOpLogger())
	definition := simpleDefinition()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = requester.ShowPopup(context.Background(), definition)
	}
}
