// Package repokit holds the seams repositories bind against
package repokit

import (
	"context"

	"github.com/LetsGoKDH/taps/internal/platform/store"
)

// Queryer is the read and write surface for sql repos
type Queryer = store.RowQuerier

// TxRunner executes a function inside a transaction
type TxRunner = store.TxRunner

type (
	// Rows is a result set
	Rows = store.Rows

	// Row is a single row result
	Row = store.Row

	// CommandTag is a write result
	CommandTag = store.CommandTag
)

// WithTx runs fn inside a transaction on tx
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}
