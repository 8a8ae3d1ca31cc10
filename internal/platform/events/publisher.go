// Package events publishes run outputs and resolutions to kafka
// With kafka disabled the publisher only logs, so callers never branch on it
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LetsGoKDH/taps/internal/platform/config"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"

	"github.com/segmentio/kafka-go"
)

// Topic names a logical stream
type Topic string

const (
	TopicOutput     Topic = "output"
	TopicResolution Topic = "resolution"
)

// Sink is what producers depend on
type Sink interface {
	Publish(ctx context.Context, t Topic, key string, event any) error
}

// Config configures the publisher
type Config struct {
	Enabled          bool
	Brokers          []string
	TopicOutputs     string
	TopicResolutions string
	Principal        string
}

// ConfigFromEnv reads TAPS_KAFKA_*
func ConfigFromEnv(c config.Conf) Config {
	k := c.Prefix("KAFKA_")
	brokers := k.MayCSV("BROKERS", nil)
	return Config{
		Enabled:          k.MayBool("ENABLED", len(brokers) > 0),
		Brokers:          brokers,
		TopicOutputs:     k.MayString("TOPIC_OUTPUTS", "taps.outputs"),
		TopicResolutions: k.MayString("TOPIC_RESOLUTIONS", "taps.resolutions"),
		Principal:        k.MayString("PRINCIPAL", "taps"),
	}
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes json events keyed by utterance or issue id
type Publisher struct {
	writers   map[Topic]writer
	names     map[Topic]string
	principal string
	enabled   bool
	metrics   *metrics.Metrics
	log       logger.Logger
}

var _ Sink = (*Publisher)(nil)

// New builds a publisher; disabled config or no brokers gives log only mode
func New(cfg Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.Default
	}
	p := &Publisher{
		names: map[Topic]string{
			TopicOutput:     cfg.TopicOutputs,
			TopicResolution: cfg.TopicResolutions,
		},
		principal: cfg.Principal,
		metrics:   m,
		log:       *logger.Named("events"),
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.log.Info().Msg("kafka disabled, log only mode")
		return p
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	transport := &kafka.Transport{Dial: dialer.DialFunc}
	p.writers = make(map[Topic]writer, len(p.names))
	for t, name := range p.names {
		p.writers[t] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        name,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}
	p.enabled = true
	p.log.Info().Strs("brokers", cfg.Brokers).Str("outputs", cfg.TopicOutputs).
		Str("resolutions", cfg.TopicResolutions).Msg("kafka publisher ready")
	return p
}

// Enabled reports whether messages reach kafka
func (p *Publisher) Enabled() bool { return p.enabled }

// Publish marshals event and writes it under key
func (p *Publisher) Publish(ctx context.Context, t Topic, key string, event any) error {
	start := time.Now()
	name := p.names[t]
	if name == "" {
		name = string(t)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", name).Msg("marshal event")
		return err
	}
	p.log.Debug().Str("topic", name).Str("key", key).RawJSON("payload", payload).Msg("publish")

	w := p.writers[t]
	if !p.enabled || w == nil {
		p.metrics.RecordPublish(name, nil, time.Since(start))
		return nil
	}

	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(t)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	})
	p.metrics.RecordPublish(name, err, time.Since(start))
	if err != nil {
		p.log.Error().Err(err).Str("topic", name).Str("key", key).Msg("kafka write failed")
	}
	return err
}

// Close closes every writer
func (p *Publisher) Close() error {
	var first error
	for t, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Error().Err(err).Str("topic", string(t)).Msg("close writer")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Discard drops every event, for tests and offline tools
type Discard struct{}

// Publish implements Sink
func (Discard) Publish(context.Context, Topic, string, any) error { return nil }
