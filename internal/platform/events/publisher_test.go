package events

import (
	"context"
	"errors"
	"testing"

	"github.com/LetsGoKDH/taps/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestNewDisabled(t *testing.T) {
	cases := []Config{
		{Enabled: false, Brokers: []string{"localhost:9092"}},
		{Enabled: true},
	}
	for _, c := range cases {
		p := New(c, metrics.New(prometheus.NewRegistry()))
		if p.Enabled() || len(p.writers) != 0 {
			t.Fatalf("expected log only mode for %+v", c)
		}
		if err := p.Publish(context.Background(), TopicOutput, "u1", map[string]int{"a": 1}); err != nil {
			t.Fatalf("disabled publish: %v", err)
		}
	}
}

func TestNewEnabledBuildsWriters(t *testing.T) {
	p := New(Config{Enabled: true, Brokers: []string{"localhost:9092"}, TopicOutputs: "o", TopicResolutions: "r"}, metrics.New(prometheus.NewRegistry()))
	defer func() { _ = p.Close() }()
	if !p.Enabled() || len(p.writers) != 2 {
		t.Fatalf("want 2 writers, got %d", len(p.writers))
	}
	if w := p.writers[TopicResolution].(*kafka.Writer); w.Topic != "r" {
		t.Fatalf("resolution topic = %q", w.Topic)
	}
}

func TestPublishWritesKeyedMessage(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	fw := &fakeWriter{}
	p := &Publisher{
		writers:   map[Topic]writer{TopicResolution: fw},
		names:     map[Topic]string{TopicResolution: "taps.resolutions"},
		principal: "test",
		enabled:   true,
		metrics:   m,
	}
	if err := p.Publish(context.Background(), TopicResolution, "u1#1", map[string]string{"final_text": "x"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fw.msgs) != 1 || string(fw.msgs[0].Key) != "u1#1" || string(fw.msgs[0].Value) != `{"final_text":"x"}` {
		t.Fatalf("unexpected messages %+v", fw.msgs)
	}

	fw.err = errors.New("broker down")
	if err := p.Publish(context.Background(), TopicResolution, "u1#2", 1); err == nil {
		t.Fatalf("want error")
	}
	if got := testutil.ToFloat64(m.PublishErrors.WithLabelValues("taps.resolutions")); got != 1 {
		t.Fatalf("publish errors = %v", got)
	}
}

func TestPublishMarshalError(t *testing.T) {
	p := New(Config{}, metrics.New(prometheus.NewRegistry()))
	if err := p.Publish(context.Background(), TopicOutput, "k", make(chan int)); err == nil {
		t.Fatalf("want marshal error")
	}
}
