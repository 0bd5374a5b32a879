package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newKeyedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth(secret))
	r.GET("/admin", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAPIKeyAuth_MatchPasses(t *testing.T) {
	r := newKeyedRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(APIKeyHeader, "s3cret")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid key -> %d", w.Code)
	}
}

func TestAPIKeyAuth_WrongOrMissingKey(t *testing.T) {
	r := newKeyedRouter("s3cret")

	for _, key := range []string{"", "S3CRET", "s3cret "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if key != "" {
			req.Header.Set(APIKeyHeader, key)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("key %q -> %d, want 401", key, w.Code)
		}
	}
}

// A deployment with no admin secret configured must reject everything, even a
// request that happens to send an empty header.
func TestAPIKeyAuth_FailsClosedWithoutSecret(t *testing.T) {
	r := newKeyedRouter("")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(APIKeyHeader, "")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no secret -> %d, want 401", w.Code)
	}

	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out["code"] != "unauthorized" {
		t.Fatalf("envelope code = %q", out["code"])
	}
}
