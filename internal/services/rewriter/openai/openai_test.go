package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/domain"
)

func TestNewRequiresKeyAndModel(t *testing.T) {
	if _, err := New("", "m"); err == nil {
		t.Fatalf("want error for empty key")
	}
	if _, err := New("k", ""); err == nil {
		t.Fatalf("want error for empty model")
	}
}

func fakeServer(t *testing.T, content string, seen *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*seen = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestProposeParsesReply(t *testing.T) {
	var seen string
	srv := fakeServer(t, "```json\n[{\"text\":\"1234\",\"score\":0.92},{\"text\":\"일이삼사\",\"score\":0.4}]\n```", &seen)
	defer srv.Close()

	a, err := New("k", "test-model", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := a.Propose(context.Background(), domain.Request{Kind: candidate.TaskSpan, Left: "인증번호가 ", Span: "일이삼사", Right: "야", K: 3})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(got) != 2 || got[0].Text != "1234" {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if !strings.Contains(seen, "STW_SPAN") || !strings.Contains(seen, "test-model") {
		t.Fatalf("request missing prompt or model: %s", seen)
	}
}

func TestProposeRejectsProse(t *testing.T) {
	var seen string
	srv := fakeServer(t, "I cannot help with that", &seen)
	defer srv.Close()

	a, _ := New("k", "m", WithBaseURL(srv.URL))
	if _, err := a.Propose(context.Background(), domain.Request{Kind: candidate.TaskSentence, Span: "x"}); err == nil {
		t.Fatalf("want parse error")
	}
}
