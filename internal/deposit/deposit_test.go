package deposit_test

import (
	"strings"
	"testing"

	"bindery/internal/deposit"
)

const (
	testDepositUUID = "a1b2c3d4-e5f6-4a5b-8c9d-0e1f2a3b4c5d"
	testJournalUUID = "00112233-4455-4677-8899-aabbccddeeff"
)

func TestNewNormalizesUUIDs(t *testing.T) {
	dep, err := deposit.New(testDepositUUID, testJournalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	if dep.UUID != strings.ToUpper(testDepositUUID) {
		t.Fatalf("deposit uuid not upper-cased: %s", dep.UUID)
	}
	if dep.JournalUUID != strings.ToUpper(testJournalUUID) {
		t.Fatalf("journal uuid not upper-cased: %s", dep.JournalUUID)
	}
	if dep.State != deposit.StateDepositedByJournal {
		t.Fatalf("new deposit should start in %s, got %s", deposit.StateDepositedByJournal, dep.State)
	}
}

func TestNewRejectsMalformedUUID(t *testing.T) {
	if _, err := deposit.New("not-a-uuid", testJournalUUID); err == nil {
		t.Fatal("expected error for malformed deposit uuid")
	}
	if _, err := deposit.New(testDepositUUID, "nope"); err == nil {
		t.Fatal("expected error for malformed journal uuid")
	}
}

func TestSetChecksumNormalizesCase(t *testing.T) {
	dep := mustNew(t)
	dep.SetChecksum("SHA1", "abcdef0123456789")
	if dep.ChecksumType != "sha1" {
		t.Fatalf("checksum type should be lower-case, got %q", dep.ChecksumType)
	}
	if dep.ChecksumValue != "ABCDEF0123456789" {
		t.Fatalf("checksum value should be upper-case, got %q", dep.ChecksumValue)
	}
}

func TestSetLicenseDropsEmptyValues(t *testing.T) {
	dep := mustNew(t)
	dep.SetLicense(map[string]string{
		"openAccess": "yes",
		"publisher":  "  ",
		"copyright":  "",
	})
	if len(dep.License) != 1 {
		t.Fatalf("expected only non-empty terms, got %v", dep.License)
	}
	if dep.License["openAccess"] != "yes" {
		t.Fatalf("expected openAccess term retained, got %v", dep.License)
	}
}

func TestAdvanceWalksPipelineInOrder(t *testing.T) {
	dep := mustNew(t)
	for {
		next, ok := deposit.Next(dep.State)
		if !ok {
			break
		}
		if err := dep.Advance(next, ""); err != nil {
			t.Fatalf("advance %s: %v", next, err)
		}
	}
	if dep.State != deposit.StateCleaned {
		t.Fatalf("pipeline should end at %s, got %s", deposit.StateCleaned, dep.State)
	}
}

func TestAdvanceRejectsSkippedStates(t *testing.T) {
	dep := mustNew(t)
	if err := dep.Advance(deposit.StateScanned, ""); err == nil {
		t.Fatal("expected error advancing past intermediate states")
	}
	if err := dep.Advance(deposit.StateDepositedByJournal, ""); err == nil {
		t.Fatal("expected error advancing to the current state")
	}
}

func TestAdvanceResetsAttempts(t *testing.T) {
	dep := mustNew(t)
	dep.Attempts = 3
	if err := dep.Advance(deposit.StateHarvested, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if dep.Attempts != 0 {
		t.Fatalf("advance must reset attempts, got %d", dep.Attempts)
	}
}

func TestFailFromAnyPipelineState(t *testing.T) {
	for _, state := range deposit.PipelineOrder[:len(deposit.PipelineOrder)-1] {
		dep := mustNew(t)
		dep.State = state
		if err := dep.Fail("boom"); err != nil {
			t.Fatalf("fail from %s: %v", state, err)
		}
		if dep.State != deposit.StateFailed {
			t.Fatalf("expected failed state, got %s", dep.State)
		}
		if dep.FailedState != state {
			t.Fatalf("failed state should record %s, got %s", state, dep.FailedState)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range []deposit.State{deposit.StateCleaned, deposit.StateFailed} {
		for _, to := range deposit.AllStates() {
			if deposit.CanTransition(from, to) {
				t.Fatalf("unexpected edge %s -> %s", from, to)
			}
		}
	}
}

func TestForceStateIgnoresTransitionTable(t *testing.T) {
	dep := mustNew(t)
	if err := dep.Advance(deposit.StateHarvested, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := dep.Fail("download refused"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	dep.Attempts = 2

	dep.ForceState(deposit.StateHarvested, "")
	if dep.State != deposit.StateHarvested {
		t.Fatalf("expected %s, got %s", deposit.StateHarvested, dep.State)
	}
	if dep.FailedState != "" {
		t.Fatalf("failed state should clear, got %s", dep.FailedState)
	}
	if dep.Attempts != 0 {
		t.Fatalf("attempts should reset, got %d", dep.Attempts)
	}
	if !strings.Contains(dep.ProcessingLog, "State forced from failed to harvested.") {
		t.Fatalf("missing forced-transition log entry: %q", dep.ProcessingLog)
	}
}

func TestResetFailedRestoresFailureState(t *testing.T) {
	dep := mustNew(t)
	if err := dep.Advance(deposit.StateHarvested, ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := dep.Fail("download refused"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	logBefore := dep.ProcessingLog
	if err := dep.ResetFailed(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if dep.State != deposit.StateHarvested {
		t.Fatalf("reset should restore %s, got %s", deposit.StateHarvested, dep.State)
	}
	if dep.FailedState != "" {
		t.Fatalf("failed state should clear on reset, got %s", dep.FailedState)
	}
	if len(dep.ErrorLog) != 1 {
		t.Fatalf("error log must survive reset, got %v", dep.ErrorLog)
	}
	if !strings.HasPrefix(dep.ProcessingLog, logBefore) {
		t.Fatal("processing log must be append-only across reset")
	}
}

func TestResetFailedRejectsNonFailedDeposit(t *testing.T) {
	dep := mustNew(t)
	if err := dep.ResetFailed(); err == nil {
		t.Fatal("expected error resetting a healthy deposit")
	}
}

func TestAppendLogSeparatesBlocks(t *testing.T) {
	dep := mustNew(t)
	dep.AppendLog("first entry")
	dep.AppendLog("second entry")
	blocks := strings.Split(dep.ProcessingLog, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blank-line separated blocks, got %d: %q", len(blocks), dep.ProcessingLog)
	}
	if !strings.Contains(blocks[1], "second entry") {
		t.Fatalf("second block missing entry: %q", blocks[1])
	}
}

func TestParseState(t *testing.T) {
	state, ok := deposit.ParseState("payload-validated")
	if !ok || state != deposit.StatePayloadValidated {
		t.Fatalf("ParseState(payload-validated) = %v, %v", state, ok)
	}
	if _, ok := deposit.ParseState("bogus"); ok {
		t.Fatal("expected parse failure for unknown state")
	}
}

func mustNew(t *testing.T) *deposit.Deposit {
	t.Helper()
	dep, err := deposit.New(testDepositUUID, testJournalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	return dep
}
