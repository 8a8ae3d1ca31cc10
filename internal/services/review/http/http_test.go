package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/issue"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	cdomain "github.com/LetsGoKDH/taps/internal/services/correct/domain"
	resrepo "github.com/LetsGoKDH/taps/internal/services/resolutions/repo"
	ressvc "github.com/LetsGoKDH/taps/internal/services/resolutions/service"
	reviewhttp "github.com/LetsGoKDH/taps/internal/services/review/http"
	"github.com/LetsGoKDH/taps/internal/services/review/service"

	"github.com/prometheus/client_golang/prometheus"
)

func router() phttp.Router {
	outs := service.StaticOutputs{{
		UttID: "a_1", TextRaw: "인증번호가 일이삼사야",
		Issues: []issue.Issue{{
			ID: "a_1#0", UttID: "a_1", SpanStart: 6, SpanEnd: 10, RawSpan: "일이삼사", Prefill: "1 2 3 4",
			Candidates: []candidate.Candidate{{Text: "1 2 3 4", Score: 0.62}, {Text: "1234", Score: 0.55}},
		}},
	}}
	res := ressvc.New(resrepo.NewMemory(), nil, metrics.New(prometheus.NewRegistry()))
	r := phttp.NewServer("").Router()
	r.Route("/v1", func(v1 phttp.Router) {
		reviewhttp.Register(v1, service.New(outs, res, "b"))
	})
	return r
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Code       perr.ErrorCode  `json:"code"`
	Field      string          `json:"field"`
	Data       json.RawMessage `json:"data"`
}

func call(t *testing.T, r phttp.Router, method, path, body string) envelope {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	if env.StatusCode != rec.Code {
		t.Fatalf("envelope status %d vs %d", env.StatusCode, rec.Code)
	}
	return env
}

func TestReviewAPI(t *testing.T) {
	r := router()

	env := call(t, r, "GET", "/v1/issues?utt_id=a_1", "")
	var open []issue.Issue
	if err := json.Unmarshal(env.Data, &open); err != nil || env.StatusCode != 200 || len(open) != 1 {
		t.Fatalf("issues: %+v %v", env, err)
	}

	if env := call(t, r, "GET", "/v1/resolutions/a_1%230", ""); env.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 before resolving, got %+v", env)
	}

	env = call(t, r, "POST", "/v1/issues/a_1%230/resolution", `{"candidate_index":1,"reviewer":"kim"}`)
	if env.StatusCode != http.StatusCreated {
		t.Fatalf("resolve: %+v", env)
	}
	var got struct {
		FinalText string `json:"final_text"`
		Modified  bool   `json:"modified"`
	}
	_ = json.Unmarshal(env.Data, &got)
	if got.FinalText != "1234" || !got.Modified {
		t.Fatalf("resolution = %+v", got)
	}

	env = call(t, r, "GET", "/v1/resolutions/a_1%230", "")
	if env.StatusCode != 200 {
		t.Fatalf("latest: %+v", env)
	}
	env = call(t, r, "GET", "/v1/issues", "")
	if err := json.Unmarshal(env.Data, &open); err != nil || len(open) != 0 {
		t.Fatalf("resolved issue still listed: %s", env.Data)
	}
}

func TestReviewAPIErrors(t *testing.T) {
	r := router()
	cases := []struct {
		path, body string
		status     int
		code       perr.ErrorCode
	}{
		{"/v1/issues/a_1%230/resolution", `{"candidate_index":-1}`, 400, perr.ErrorCodeValidation},
		{"/v1/issues/a_1%230/resolution", `{"candidate_index":9}`, 422, perr.ErrorCodeInputValidation},
		{"/v1/issues/a_1%230/resolution", `{"bogus":1}`, 400, perr.ErrorCodeJSON},
		{"/v1/issues/z_1%230/resolution", `{}`, 404, perr.ErrorCodeNotFound},
	}
	for _, c := range cases {
		env := call(t, r, "POST", c.path, c.body)
		if env.StatusCode != c.status || env.Code != c.code {
			t.Fatalf("%s %s: got %d %v", c.path, c.body, env.StatusCode, env.Code)
		}
	}
}

var _ cdomain.OutputsPort = service.StaticOutputs(nil)
