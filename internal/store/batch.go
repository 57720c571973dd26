package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bindery/internal/deposit"
)

// BatchWriter accumulates deposit updates and commits them in bounded
// transactions so a sweep over a large population neither opens one
// transaction per record nor holds a single transaction for the whole
// run. A crash loses at most the uncommitted tail of the current batch;
// those deposits keep their old state and are re-selected on the next
// sweep.
type BatchWriter struct {
	store   *Store
	size    int
	tx      *sql.Tx
	pending int
	// committed counts saves that reached durable storage.
	committed int
}

// NewBatchWriter returns a writer committing every size saves.
func (s *Store) NewBatchWriter(size int) *BatchWriter {
	if size <= 0 {
		size = 1
	}
	return &BatchWriter{store: s, size: size}
}

// Save stages a deposit update in the current batch, committing when the
// batch is full.
func (b *BatchWriter) Save(ctx context.Context, dep *deposit.Deposit) error {
	if dep == nil {
		return errors.New("deposit is nil")
	}
	ctx = ensureContext(ctx)

	if b.tx == nil {
		tx, err := b.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch tx: %w", err)
		}
		b.tx = tx
	}

	if err := updateDeposit(ctx, b.tx, dep); err != nil {
		return err
	}
	b.pending++

	if b.pending >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush commits any pending saves. Safe to call with nothing pending.
func (b *BatchWriter) Flush(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, b.tx.Commit)
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	b.committed += b.pending
	b.pending = 0
	b.tx = nil
	return nil
}

// Committed reports how many saves have been durably committed.
func (b *BatchWriter) Committed() int {
	return b.committed
}

// Close rolls back any uncommitted batch. Call it deferred; after a
// successful Flush it is a no-op.
func (b *BatchWriter) Close() error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Rollback()
	b.tx = nil
	b.pending = 0
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}
