package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/items/42", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/items/:id", "200"))
	if val < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", val)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddlewareStatusCodes(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		path   string
		label  string
		status string
	}{
		{"/missing", "/missing", "404"},
		{"/nowhere", "unknown", "404"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, http.NoBody))
			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.label, tc.status))
			if val < 1 {
				t.Errorf("expected requests_total for %s/%s >= 1, got %f", tc.label, tc.status, val)
			}
		})
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}
