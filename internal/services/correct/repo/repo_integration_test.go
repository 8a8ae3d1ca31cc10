//go:build integration_pg

package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/LetsGoKDH/taps/internal/platform/store"
	"github.com/LetsGoKDH/taps/internal/services/correct/guardrails"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func openPG(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env:          map[string]string{"POSTGRES_PASSWORD": "taps", "POSTGRES_USER": "taps", "POSTGRES_DB": "taps"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")

	s, err := store.Open(ctx, store.Config{
		AppName: "taps-test",
		PG: store.PGConfig{
			Enabled:        true,
			URL:            fmt.Sprintf("postgres://taps:taps@%s:%s/taps?sslmode=disable", host, port.Port()),
			MaxConns:       4,
			ConnectRetries: 5,
			PingTimeout:    5 * time.Second,
		},
	})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestPostgresLedger_RoundTrip(t *testing.T) {
	s := openPG(t)
	ctx := context.Background()
	l := NewPostgres(s.PG, NewPG())
	if err := l.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	exercise(t, l)

	got, err := l.Load(ctx, "b1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(got["a"].Output, &v); err != nil || v["utt_id"] != "a" {
		t.Fatalf("output = %s (%v)", got["a"].Output, err)
	}
}

func TestAdvisoryLease(t *testing.T) {
	s := openPG(t)
	ctx := context.Background()
	if _, err := s.PG.Exec(ctx, guardrails.LeaseTable); err != nil {
		t.Fatalf("ddl: %v", err)
	}
	lease := guardrails.MakeAdvisoryLease(s.PG, time.Hour)

	err := lease(ctx, "batch", "one", func(ctx context.Context) error {
		inner := lease(ctx, "batch", "two", func(context.Context) error { return nil })
		if !guardrails.IsLeaseHeld(inner) {
			t.Fatalf("second holder got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if err := lease(ctx, "batch", "two", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("released lease not reclaimable: %v", err)
	}
}
