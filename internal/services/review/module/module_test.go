package module

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LetsGoKDH/taps/internal/core/issue"
	"github.com/LetsGoKDH/taps/internal/modkit"
	"github.com/LetsGoKDH/taps/internal/platform/config"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	resrepo "github.com/LetsGoKDH/taps/internal/services/resolutions/repo"
	ressvc "github.com/LetsGoKDH/taps/internal/services/resolutions/service"
	"github.com/LetsGoKDH/taps/internal/services/review/service"

	"github.com/prometheus/client_golang/prometheus"
)

func TestFromConfig(t *testing.T) {
	t.Setenv("TAPS_REVIEW_BATCH_ID", "day1")
	if o := FromConfig(config.New()); o.BatchID != "day1" {
		t.Fatalf("options = %+v", o)
	}
}

func TestMountRoutes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	outs := service.StaticOutputs{{
		UttID:  "a_1",
		Issues: []issue.Issue{{ID: "a_1#0", UttID: "a_1", RawSpan: "일이삼사", Prefill: "1234"}},
	}}
	mod := New(modkit.Deps{Metrics: m}, outs, ressvc.New(resrepo.NewMemory(), nil, m), Options{BatchID: "b"})
	if mod.Name() != "review" || mod.Service() == nil {
		t.Fatalf("module = %+v", mod)
	}
	if _, ok := mod.Ports().(Ports); !ok {
		t.Fatalf("ports type %T", mod.Ports())
	}

	r := phttp.NewServer("").Router()
	r.Route("/v1", mod.MountRoutes)

	cases := []struct {
		path string
		want int
	}{
		{"/v1/issues", http.StatusOK},
		{"/v1/issues?utt_id=a_1", http.StatusOK},
		{"/v1/resolutions/a_1%230", http.StatusNotFound},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.path, nil))
		if rec.Code != c.want {
			t.Fatalf("GET %s = %d, want %d: %s", c.path, rec.Code, c.want, rec.Body.String())
		}
	}
}
