package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.ObserveOp("move", true)
	m.ObserveOp("move", false)
	m.SetCounts(3, 2)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{
		`transitiond_transition_ops_total{op="move",result="applied"} 1`,
		`transitiond_transition_ops_total{op="move",result="noop"} 1`,
		"transitiond_clips 3",
		"transitiond_transitions 2",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveOp("move", true)
	m.SetCounts(1, 1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("nil metrics handler status = %d, want 404", rr.Code)
	}
}
