package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"hearing-go/internal/models"
	"hearing-go/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	orch := services.NewOrchestrator(log, services.Dependencies{})
	return Setup(log, orch, map[string]models.WordList{"en": {}}, func() string { return "en" })
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t)

	nonces := map[string]bool{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET / = %d", w.Code)
		}
		if w.Header().Get("X-Frame-Options") != "DENY" {
			t.Error("missing X-Frame-Options")
		}
		csp := w.Header().Get("Content-Security-Policy")
		i := strings.Index(csp, "'nonce-")
		if i < 0 {
			t.Fatalf("CSP without nonce: %q", csp)
		}
		nonce := csp[i+len("'nonce-"):]
		nonce = nonce[:strings.IndexByte(nonce, '\'')]
		if !strings.Contains(w.Body.String(), `nonce="`+nonce+`"`) {
			t.Error("page scripts do not carry the header nonce")
		}
		nonces[nonce] = true
	}
	if len(nonces) != 2 {
		t.Error("nonce reused across requests")
	}
}

func TestHTMXSkipsCSP(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/test/status", nil)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Content-Security-Policy") != "" {
		t.Error("fragments must not set a CSP")
	}
	if !strings.Contains(w.Body.String(), `id="panel"`) {
		t.Errorf("expected panel fragment, got %s", w.Body)
	}
}

func TestInputWithoutSession(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/test/respond", "/test/skip", "/test/dontknow", "/test/replay", "/test/probe/0", "/test/confirm/1", "/test/answer/3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		if w.Code != http.StatusConflict {
			t.Errorf("POST %s = %d, want 409", path, w.Code)
		}
	}
}
