package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/aman-churiwal/crm-relay/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name  string
		xff   []string
		depth int
		want  string
	}{
		{"no proxy trusted", []string{"1.1.1.1"}, 0, "10.0.0.1"},
		{"one proxy", []string{"1.1.1.1"}, 1, "1.1.1.1"},
		{"spoofed left hops ignored", []string{"6.6.6.6, 1.1.1.1"}, 1, "1.1.1.1"},
		{"two proxies", []string{"1.1.1.1, 2.2.2.2"}, 2, "1.1.1.1"},
		{"multiple headers", []string{"1.1.1.1", "2.2.2.2"}, 2, "1.1.1.1"},
		{"depth beyond chain clamps", []string{"1.1.1.1"}, 5, "1.1.1.1"},
		{"no header", nil, 1, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:5555"
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.depth))
		})
	}
}

// newCountingRouter mounts the public chain in front of a handler that
// counts how often it was reached.
func newCountingRouter(global *ratelimit.Global, perIP ratelimit.Limiter) (*gin.Engine, *int) {
	calls := 0
	r := gin.New()
	r.Use(RequestID(), ResolveClientIP(1))
	r.POST("/upsertContact", GlobalRateLimit(global, nil), IPRateLimit(perIP, nil), Honeypot(nil), func(c *gin.Context) {
		calls++
		body, _ := io.ReadAll(c.Request.Body)
		c.Data(http.StatusCreated, "application/json", body)
	})
	return r, &calls
}

func post(r http.Handler, ip, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upsertContact", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", ip)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIPRateLimit_IsolatesClients(t *testing.T) {
	global := ratelimit.NewGlobal(100, time.Hour)
	defer global.Stop()
	perIP := ratelimit.NewFixedWindow(5, time.Minute)
	defer perIP.Stop()

	r, calls := newCountingRouter(global, perIP)

	for i := 0; i < 5; i++ {
		w := post(r, "1.1.1.1", `{"firstName":"Ada"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := post(r, "1.1.1.1", `{"firstName":"Ada"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many requests from this IP, please try again after a minute."}`, w.Body.String())
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// a different client is unaffected
	w = post(r, "2.2.2.2", `{"firstName":"Bob"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, 6, *calls)
}

func TestGlobalRateLimit(t *testing.T) {
	global := ratelimit.NewGlobal(10, time.Hour)
	defer global.Stop()
	perIP := ratelimit.NewFixedWindow(100, time.Minute)
	defer perIP.Stop()

	r, calls := newCountingRouter(global, perIP)

	codes := map[int]int{}
	for i := 0; i < 11; i++ {
		codes[post(r, fmt.Sprintf("1.1.1.%d", i), `{}`).Code]++
	}

	assert.Equal(t, 10, codes[http.StatusCreated])
	assert.Equal(t, 1, codes[http.StatusTooManyRequests])
	assert.Equal(t, 10, *calls)

	w := post(r, "9.9.9.9", `{}`)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, w.Body.String())
}

func TestGlobalRateLimit_ConcurrentCallers(t *testing.T) {
	global := ratelimit.NewGlobal(10, time.Hour)
	defer global.Stop()

	r := gin.New()
	r.GET("/getCalendar", GlobalRateLimit(global, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	var mu sync.Mutex
	admitted := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/getCalendar", nil))
			if w.Code == http.StatusOK {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted)
}

func TestHoneypot(t *testing.T) {
	global := ratelimit.NewGlobal(100, time.Hour)
	defer global.Stop()
	perIP := ratelimit.NewFixedWindow(100, time.Minute)
	defer perIP.Stop()

	r, calls := newCountingRouter(global, perIP)

	w := post(r, "1.1.1.1", `{"firstName":"Ada","website":"http://spam.example"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Bot detected"}`, w.Body.String())
	assert.Zero(t, *calls)

	// blank honeypot passes and the handler still sees the full body
	body := `{"firstName":"Ada","website":"  "}`
	w = post(r, "1.1.1.1", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, body, w.Body.String())
	assert.Equal(t, 1, *calls)
}

func TestFilledHoneypot(t *testing.T) {
	assert.False(t, filledHoneypot([]byte(`{}`)))
	assert.False(t, filledHoneypot([]byte(`{"website":null}`)))
	assert.False(t, filledHoneypot([]byte(`{"website":""}`)))
	assert.False(t, filledHoneypot([]byte(`not json`)))
	assert.True(t, filledHoneypot([]byte(`{"website":"x"}`)))
	assert.True(t, filledHoneypot([]byte(`{"website":1}`)))
	assert.True(t, filledHoneypot([]byte(`{"website":["x"]}`)))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) {
		panic("db password is hunter2")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://clinic.example"))
	r.GET("/getCalendar", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/getCalendar", nil)
	req.Header.Set("Origin", "https://clinic.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://clinic.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/getCalendar", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// same-host tools without an Origin header are allowed
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/getCalendar", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdminToken(t *testing.T) {
	r := gin.New()
	r.GET("/admin/summary", RequireAdminToken("s3cret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"s3cret", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin/summary", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.header)
	}
}

type memLogWriter struct {
	mu      sync.Mutex
	batches [][]models.RequestLog
}

func (m *memLogWriter) CreateBatch(_ context.Context, logs []models.RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]models.RequestLog(nil), logs...))
	return nil
}

func (m *memLogWriter) all() []models.RequestLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RequestLog
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func TestRequestLogger_RecordsRejections(t *testing.T) {
	writer := &memLogWriter{}
	logger := NewRequestLogger(writer, 10)
	logger.Start()

	global := ratelimit.NewGlobal(100, time.Hour)
	defer global.Stop()
	perIP := ratelimit.NewFixedWindow(100, time.Minute)
	defer perIP.Stop()

	r := gin.New()
	r.Use(RequestID(), ResolveClientIP(1), logger.Middleware())
	r.POST("/upsertContact", GlobalRateLimit(global, nil), IPRateLimit(perIP, nil), Honeypot(nil), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	post(r, "1.1.1.1", `{"firstName":"Ada"}`)
	post(r, "3.3.3.3", `{"website":"spam"}`)

	logger.Stop()

	logs := writer.all()
	require.Len(t, logs, 2)

	assert.Equal(t, http.StatusCreated, logs[0].StatusCode)
	assert.Equal(t, "1.1.1.1", logs[0].IPAddress)
	assert.Empty(t, logs[0].RejectReason)
	assert.NotEmpty(t, logs[0].RequestID)

	assert.Equal(t, http.StatusBadRequest, logs[1].StatusCode)
	assert.Equal(t, "3.3.3.3", logs[1].IPAddress)
	assert.Equal(t, models.RejectHoneypot, logs[1].RejectReason)
}
