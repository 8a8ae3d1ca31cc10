// Package openai proposes rewrites through a chat completion model
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/domain"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const systemPrompt = `You correct Korean speech recognition output.
The user message is one tagged block:
STW_SPAN asks for replacements of the text between ⟦ and ⟧ given LEFT and RIGHT context.
STW_URL asks for the written form of a spoken web address or email.
STW_CANON asks for the whole sentence in canonical written form.
Reply with only a JSON array of at most %d objects {"text": string, "score": number in [0,1]},
best first. For STW_SPAN and STW_URL the text replaces only the marked span.`

// Adapter calls the chat completions api
type Adapter struct {
	client      oai.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ domain.Port = (*Adapter)(nil)

type config struct {
	baseURL     string
	timeout     time.Duration
	temperature float64
	maxTokens   int64
}

// Option configures the adapter
type Option func(*config)

// WithBaseURL points the client at a compatible endpoint
func WithBaseURL(u string) Option { return func(c *config) { c.baseURL = u } }

// WithHTTPTimeout caps each http request
func WithHTTPTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithTemperature sets sampling temperature, default 0.2
func WithTemperature(t float64) Option { return func(c *config) { c.temperature = t } }

// WithMaxTokens caps completion tokens, default 512
func WithMaxTokens(n int64) Option { return func(c *config) { c.maxTokens = n } }

// New builds the adapter; apiKey and model are required
func New(apiKey, model string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}
	cfg := &config{temperature: 0.2, maxTokens: 512}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Adapter{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}, nil
}

// Propose sends one prompt and parses the JSON candidate array
func (a *Adapter) Propose(ctx context.Context, req domain.Request) ([]candidate.Candidate, error) {
	k := req.K
	if k <= 0 {
		k = 5
	}
	resp, err := a.client.Chat.Completions.New(ctx, a.params(req, k))
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}
	return domain.ParseCandidates(resp.Choices[0].Message.Content, k)
}

func (a *Adapter) params(req domain.Request, k int) oai.ChatCompletionNewParams {
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(fmt.Sprintf(systemPrompt, k)),
			oai.UserMessage(req.Prompt()),
		},
		Temperature:         param.NewOpt(a.temperature),
		MaxCompletionTokens: param.NewOpt(a.maxTokens),
	}
}
