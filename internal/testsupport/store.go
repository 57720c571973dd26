package testsupport

import (
	"context"
	"testing"

	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/journal"
	"bindery/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewDeposit creates and persists a deposit in its initial state. The
// parent journal row is upserted first so the deposit's foreign key holds.
func NewDeposit(t testing.TB, st *store.Store, depositUUID, journalUUID string) *deposit.Deposit {
	t.Helper()

	dep, err := deposit.New(depositUUID, journalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	j := &journal.Journal{
		UUID:       dep.JournalUUID,
		Title:      "Test Journal",
		GatewayURL: "http://journal.example.edu/gateway",
		Status:     journal.StatusHealthy,
	}
	if err := st.UpsertJournal(context.Background(), j); err != nil {
		t.Fatalf("store.UpsertJournal: %v", err)
	}
	if err := st.CreateDeposit(context.Background(), dep); err != nil {
		t.Fatalf("store.CreateDeposit: %v", err)
	}
	return dep
}

// SeedDeposit persists a deposit advanced to the given state, appending a
// log entry per transition like the pipeline would.
func SeedDeposit(t testing.TB, st *store.Store, depositUUID, journalUUID string, state deposit.State) *deposit.Deposit {
	t.Helper()

	dep := NewDeposit(t, st, depositUUID, journalUUID)
	for dep.State != state {
		next, ok := deposit.Next(dep.State)
		if !ok {
			t.Fatalf("cannot advance deposit from %s toward %s", dep.State, state)
		}
		if err := dep.Advance(next, ""); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if err := st.UpdateDeposit(context.Background(), dep); err != nil {
		t.Fatalf("store.UpdateDeposit: %v", err)
	}
	return dep
}
