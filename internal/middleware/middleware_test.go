package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/stwalsh4118/covenant/internal/config"
	"github.com/stwalsh4118/covenant/internal/logger"
	"github.com/stwalsh4118/covenant/internal/metrics"
)

func init() {
	// Set Gin to test mode to reduce noise in tests
	gin.SetMode(gin.TestMode)
}

// TestRequestID tests the RequestID middleware
func TestRequestID(t *testing.T) {
	t.Run("generates new request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			requestID := GetRequestID(c)
			if requestID == "" {
				t.Error("Expected request ID to be set")
			}
			c.String(200, requestID)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		headerID := w.Header().Get(RequestIDHeader)
		if headerID == "" {
			t.Error("Expected X-Request-ID header to be set")
		}
		if w.Body.String() != headerID {
			t.Errorf("Expected body to contain request ID %s, got %s", headerID, w.Body.String())
		}
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(200, GetRequestID(c))
		})

		existingID := "existing-request-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Body.String() != existingID {
			t.Errorf("Expected request ID %s, got %s", existingID, w.Body.String())
		}
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(200, GetRequestID(c))
		})

		oversized := strings.Repeat("x", maxRequestIDLength+1)
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, oversized)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Body.String() == oversized || w.Body.String() == "" {
			t.Errorf("Expected a generated request ID, got %q", w.Body.String())
		}
	})

	t.Run("GetRequestID returns empty string if not set", func(t *testing.T) {
		c := &gin.Context{}
		if requestID := GetRequestID(c); requestID != "" {
			t.Errorf("Expected empty string, got %s", requestID)
		}
	})
}

// TestCORS tests the CORS middleware
func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{Origins: []string{"http://localhost:3000", "http://localhost:3001"}}

	t.Run("allows request from allowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(cfg))
		router.GET("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 200 {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Error("Expected Access-Control-Allow-Origin header to be set")
		}
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("Expected Access-Control-Allow-Credentials header to be set")
		}
	})

	t.Run("does not set CORS headers for disallowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(cfg))
		router.GET("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("Expected no CORS headers for disallowed origin")
		}
	})

	t.Run("handles PATCH preflight for allowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(cfg))
		router.PATCH("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("OPTIONS", "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "PATCH")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 204 {
			t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
		}
	})

	t.Run("wildcard allows any origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(config.CORSConfig{Origins: []string{"*"}}))
		router.GET("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("Expected wildcard origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}

// TestLogger tests the Logger middleware
func TestLogger(t *testing.T) {
	t.Run("logs request with route and request ID", func(t *testing.T) {
		var out bytes.Buffer
		router := gin.New()
		router.Use(RequestID())
		router.Use(Logger(logger.NewWithWriter(&out, zerolog.InfoLevel)))
		router.GET("/properties/:id", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/properties/abc?include=bills", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		logged := out.String()
		for _, want := range []string{`"route":"/properties/:id"`, `"request_id":"req-1"`, `"query":"include=bills"`, "Request completed"} {
			if !strings.Contains(logged, want) {
				t.Errorf("Expected log to contain %s, got %s", want, logged)
			}
		}
	})

	t.Run("logs client errors at warn level", func(t *testing.T) {
		var out bytes.Buffer
		router := gin.New()
		router.Use(Logger(logger.NewWithWriter(&out, zerolog.InfoLevel)))
		router.GET("/test", func(c *gin.Context) {
			c.String(404, "missing")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

		if !strings.Contains(out.String(), `"level":"warn"`) {
			t.Errorf("Expected warn level log, got %s", out.String())
		}
	})

	t.Run("GetLogger retrieves logger from context", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.Use(Logger(logger.Nop()))
		router.GET("/test", func(c *gin.Context) {
			if GetLogger(c) == nil {
				t.Error("Expected logger to be in context")
			}
			c.String(200, "OK")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
	})

	t.Run("GetLogger returns nil if not set", func(t *testing.T) {
		c := &gin.Context{}
		if GetLogger(c) != nil {
			t.Error("Expected nil logger")
		}
	})
}

// TestRecovery tests the Recovery middleware
func TestRecovery(t *testing.T) {
	t.Run("recovers from panic and returns 500", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.Use(Recovery(logger.Nop()))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

		if w.Code != 500 {
			t.Errorf("Expected status 500 after panic, got %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "INTERNAL_SERVER_ERROR") {
			t.Error("Expected error response to contain INTERNAL_SERVER_ERROR")
		}
		if !strings.Contains(body, "request_id") {
			t.Error("Expected error response to contain request_id")
		}
	})

	t.Run("does not interfere with normal requests", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(logger.Nop()))
		router.GET("/normal", func(c *gin.Context) {
			c.String(200, "OK")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/normal", nil))

		if w.Code != 200 || w.Body.String() != "OK" {
			t.Errorf("Expected 200 OK, got %d %s", w.Code, w.Body.String())
		}
	})
}

// TestMetrics tests the Metrics middleware
func TestMetrics(t *testing.T) {
	m := metrics.New()
	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/properties/:id", func(c *gin.Context) {
		c.String(200, "OK")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/properties/1", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/properties/2", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	if n := testutil.CollectAndCount(m.HTTPRequestDuration); n != 2 {
		t.Errorf("Expected one series per route template plus unmatched, got %d", n)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var routes []string
	for _, mf := range families {
		if mf.GetName() != "covenant_http_request_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					routes = append(routes, label.GetValue())
				}
			}
		}
	}
	joined := strings.Join(routes, ",")
	if !strings.Contains(joined, "/properties/:id") || !strings.Contains(joined, "unmatched") {
		t.Errorf("Expected route templates in labels, got %v", routes)
	}
}

// TestMiddlewareStack tests that all middleware work together
func TestMiddlewareStack(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(logger.Nop()))
	router.Use(Recovery(logger.Nop()))
	router.Use(Metrics(nil))
	router.Use(CORS(config.CORSConfig{Origins: []string{"http://localhost:3000"}}))
	router.GET("/test", func(c *gin.Context) {
		if GetRequestID(c) == "" {
			t.Error("Expected request ID from RequestID middleware")
		}
		if GetLogger(c) == nil {
			t.Error("Expected logger from Logger middleware")
		}
		c.String(200, "OK")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected X-Request-ID header")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("Expected CORS header")
	}
}
