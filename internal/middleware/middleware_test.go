package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/service"
)

type stubValidator struct {
	claims *service.Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*service.Claims, error) {
	return s.claims, s.err
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireStudentJWT(t *testing.T) {
	student := &service.Claims{TokenType: service.TokenTypeStudent, UserID: "s1"}
	admin := &service.Claims{TokenType: service.TokenTypeAdmin, UserID: "a1"}

	tests := []struct {
		name   string
		header string
		v      stubValidator
		want   int
	}{
		{"missing header", "", stubValidator{claims: student}, http.StatusUnauthorized},
		{"not bearer", "Basic abc", stubValidator{claims: student}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("bad")}, http.StatusUnauthorized},
		{"admin token", "Bearer abc", stubValidator{claims: admin}, http.StatusForbidden},
		{"student token", "Bearer abc", stubValidator{claims: student}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newEngine(RequireStudentJWT(tc.v))
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if w := do(r, req); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRequireStudentWSAuthReadsQuery(t *testing.T) {
	v := stubValidator{claims: &service.Claims{TokenType: service.TokenTypeStudent, UserID: "s1"}}
	r := newEngine(RequireStudentWSAuth(v))

	if w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}
	if w := do(r, httptest.NewRequest(http.MethodGet, "/x?token=abc", nil)); w.Code != http.StatusOK {
		t.Errorf("with token: status = %d", w.Code)
	}
}

func TestExpiredTokenCode(t *testing.T) {
	auth := service.NewAuthService("secret", -time.Minute)
	tok, _ := auth.Mint(service.TokenTypeStudent, "s1", nil)

	r := newEngine(RequireStudentJWT(auth))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := do(r, req)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "TOKEN_EXPIRED") {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRequirePermission(t *testing.T) {
	claims := &service.Claims{TokenType: service.TokenTypeAdmin, UserID: "a1", Permissions: []string{"tests:read"}}
	setClaims := func(c *gin.Context) { c.Set(ContextKeyClaims, claims) }

	if w := do(newEngine(setClaims, RequirePermission(model.PermissionTestsRead)), httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusOK {
		t.Errorf("granted: status = %d", w.Code)
	}
	if w := do(newEngine(setClaims, RequirePermission(model.PermissionTestsWrite)), httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusForbidden {
		t.Errorf("denied: status = %d", w.Code)
	}
	if w := do(newEngine(setClaims, RequireAnyPermission(model.PermissionTestsWrite, model.PermissionTestsRead)), httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusOK {
		t.Errorf("any: status = %d", w.Code)
	}
	if w := do(newEngine(RequirePermission(model.PermissionTestsRead)), httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no claims: status = %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := newEngine(rl.Middleware())

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/x", nil)
	other.RemoteAddr = "10.0.0.9:1234"
	if w := do(r, other); w.Code != http.StatusOK {
		t.Errorf("other ip limited: %d", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	gin.SetMode(gin.TestMode)
	big := strings.Repeat("exam ", 1000)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 512, SkipPaths: []string{"/metrics"}}))
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, big) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
		return do(r, req)
	}

	w := get("/big")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("big body not compressed")
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil || string(plain) != big {
		t.Errorf("round trip failed: err=%v len=%d", err, len(plain))
	}

	if w := get("/small"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small body: encoding=%q body=%q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
	if w := get("/metrics"); w.Header().Get("Content-Encoding") != "" {
		t.Error("skipped path was compressed")
	}

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "br")
	req.Header.Set("Accept", "text/event-stream")
	if w := do(r, req); w.Header().Get("Content-Encoding") != "" {
		t.Error("event stream was compressed")
	}
}

func TestNoStore(t *testing.T) {
	w := do(newEngine(NoStore()), httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
