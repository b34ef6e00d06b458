package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/items/:id", "204"))
	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+string(rune('a'+i)), nil))
	}
	after := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/items/:id", "204"))
	if after-before != 3 {
		t.Errorf("counted %v requests, want 3", after-before)
	}
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	if _, err := reg.Gather(); err != nil {
		t.Fatal(err)
	}
}

func TestEngineGauge(t *testing.T) {
	base := AttachedEngines()
	EngineAttached()
	EngineAttached()
	EngineDetached()

	if got := AttachedEngines(); got != base+1 {
		t.Errorf("AttachedEngines = %d, want %d", got, base+1)
	}
	if got := testutil.ToFloat64(ActiveEngines); got != float64(base+1) {
		t.Errorf("gauge = %v, want %d", got, base+1)
	}
	EngineDetached()
}
