package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"bindery/internal/deposit"
	"bindery/internal/journal"
	"bindery/internal/testsupport"
)

const journalUUID = "00112233-4455-4677-8899-AABBCCDDEEFF"

func depositUUID(n int) string {
	return fmt.Sprintf("A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C%02X", n)
}

func TestCreateAndFetchDeposit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dep := testsupport.NewDeposit(t, st, depositUUID(1), journalUUID)
	dep.Volume = "4"
	dep.Issue = "2"
	dep.PubDate = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	dep.SourceURL = "http://journal.example.edu/gateway/deposit"
	dep.Size = 4096
	dep.SetChecksum("SHA1", "deadbeef")
	dep.SetLicense(map[string]string{"openAccess": "yes"})
	if err := st.UpdateDeposit(ctx, dep); err != nil {
		t.Fatalf("UpdateDeposit: %v", err)
	}

	got, err := st.DepositByUUID(ctx, dep.UUID)
	if err != nil {
		t.Fatalf("DepositByUUID: %v", err)
	}
	if got == nil {
		t.Fatal("deposit not found")
	}
	if got.Volume != "4" || got.Issue != "2" || !got.PubDate.Equal(dep.PubDate) {
		t.Fatalf("issue metadata mismatch: %+v", got)
	}
	if got.ChecksumType != "sha1" || got.ChecksumValue != "DEADBEEF" {
		t.Fatalf("checksum mismatch: %s %s", got.ChecksumType, got.ChecksumValue)
	}
	if got.License["openAccess"] != "yes" {
		t.Fatalf("license mismatch: %v", got.License)
	}
	if got.State != deposit.StateDepositedByJournal {
		t.Fatalf("state mismatch: %s", got.State)
	}
}

func TestDepositLookupIsCaseInsensitive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dep := testsupport.NewDeposit(t, st, depositUUID(2), journalUUID)
	got, err := st.DepositByUUID(ctx, strings.ToLower(dep.UUID))
	if err != nil {
		t.Fatalf("DepositByUUID: %v", err)
	}
	if got == nil {
		t.Fatal("lower-cased lookup should find the deposit")
	}
	if got.UUID != dep.UUID {
		t.Fatalf("stored uuid should stay upper-case: %s", got.UUID)
	}
}

func TestDepositByUUIDReturnsNilWhenAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	got, err := st.DepositByUUID(context.Background(), depositUUID(99))
	if err != nil {
		t.Fatalf("DepositByUUID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent deposit, got %+v", got)
	}
}

func TestCreateDepositRejectsDuplicateUUID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.NewDeposit(t, st, depositUUID(3), journalUUID)
	dup, err := deposit.New(depositUUID(3), journalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	if err := st.CreateDeposit(context.Background(), dup); err == nil {
		t.Fatal("expected error for duplicate deposit uuid")
	}
}

func TestDepositsByStateHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 10; i < 15; i++ {
		testsupport.NewDeposit(t, st, depositUUID(i), journalUUID)
	}

	all, err := st.DepositsByState(ctx, deposit.StateDepositedByJournal, 0)
	if err != nil {
		t.Fatalf("DepositsByState: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 deposits, got %d", len(all))
	}

	limited, err := st.DepositsByState(ctx, deposit.StateDepositedByJournal, 2)
	if err != nil {
		t.Fatalf("DepositsByState limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(limited))
	}
}

func TestCreateDepositRequiresJournalRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	orphan, err := deposit.New(depositUUID(30), "DDEEFF00-1122-4344-8566-778899AABBCC")
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	if err := st.CreateDeposit(ctx, orphan); err == nil {
		t.Fatal("deposit without a journal row should fail the foreign key")
	}

	dep := testsupport.NewDeposit(t, st, depositUUID(31), journalUUID)
	j, err := st.JournalByUUID(ctx, dep.JournalUUID)
	if err != nil {
		t.Fatalf("JournalByUUID: %v", err)
	}
	if j == nil {
		t.Fatal("fixture should persist the parent journal row")
	}
}

func TestDepositsByStateAndJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	otherJournal := "99112233-4455-4677-8899-AABBCCDDEE99"
	testsupport.NewDeposit(t, st, depositUUID(20), journalUUID)
	testsupport.NewDeposit(t, st, depositUUID(21), journalUUID)
	testsupport.NewDeposit(t, st, depositUUID(22), otherJournal)

	mine, err := st.DepositsByStateAndJournal(ctx, deposit.StateDepositedByJournal, journalUUID)
	if err != nil {
		t.Fatalf("DepositsByStateAndJournal: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 deposits for the journal, got %d", len(mine))
	}
	for _, dep := range mine {
		if dep.JournalUUID != journalUUID {
			t.Fatalf("deposit %s belongs to %s", dep.UUID, dep.JournalUUID)
		}
	}

	none, err := st.DepositsByStateAndJournal(ctx, deposit.StateHarvested, journalUUID)
	if err != nil {
		t.Fatalf("DepositsByStateAndJournal: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no harvested deposits, got %d", len(none))
	}
}

func TestDepositStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewDeposit(t, st, depositUUID(20), journalUUID)
	testsupport.SeedDeposit(t, st, depositUUID(21), journalUUID, deposit.StateHarvested)
	testsupport.SeedDeposit(t, st, depositUUID(22), journalUUID, deposit.StateHarvested)

	stats, err := st.DepositStats(ctx)
	if err != nil {
		t.Fatalf("DepositStats: %v", err)
	}
	if stats[deposit.StateDepositedByJournal] != 1 {
		t.Fatalf("expected 1 new deposit, got %d", stats[deposit.StateDepositedByJournal])
	}
	if stats[deposit.StateHarvested] != 2 {
		t.Fatalf("expected 2 harvested deposits, got %d", stats[deposit.StateHarvested])
	}
}

func TestUpdatePersistsLogsAndFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dep := testsupport.NewDeposit(t, st, depositUUID(30), journalUUID)
	dep.AppendError("first failure")
	dep.AppendError("second failure")
	if err := dep.Fail("stage exploded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := st.UpdateDeposit(ctx, dep); err != nil {
		t.Fatalf("UpdateDeposit: %v", err)
	}

	got, err := st.DepositByUUID(ctx, dep.UUID)
	if err != nil {
		t.Fatalf("DepositByUUID: %v", err)
	}
	if got.State != deposit.StateFailed {
		t.Fatalf("state mismatch: %s", got.State)
	}
	if got.FailedState != deposit.StateDepositedByJournal {
		t.Fatalf("failed state mismatch: %s", got.FailedState)
	}
	if len(got.ErrorLog) != 3 {
		t.Fatalf("expected 3 error entries, got %v", got.ErrorLog)
	}
	if !strings.Contains(got.ProcessingLog, "stage exploded") {
		t.Fatalf("processing log missing failure entry: %q", got.ProcessingLog)
	}
}

func TestJournalUpsertAndLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	j := &journal.Journal{
		UUID:        journalUUID,
		Title:       "Journal of Tests",
		GatewayURL:  "http://journal.example.edu/gateway",
		ISSN:        "1234-5678",
		Email:       "editor@example.edu",
		OJSVersion:  "3.3.0",
		Status:      journal.StatusHealthy,
		ContactedAt: &now,
	}
	if err := st.UpsertJournal(ctx, j); err != nil {
		t.Fatalf("UpsertJournal: %v", err)
	}

	j.Title = "Journal of Tests, Second Series"
	j.OJSVersion = "3.4.0"
	if err := st.UpsertJournal(ctx, j); err != nil {
		t.Fatalf("UpsertJournal update: %v", err)
	}

	got, err := st.JournalByUUID(ctx, journalUUID)
	if err != nil {
		t.Fatalf("JournalByUUID: %v", err)
	}
	if got == nil {
		t.Fatal("journal not found")
	}
	if got.Title != "Journal of Tests, Second Series" || got.OJSVersion != "3.4.0" {
		t.Fatalf("upsert did not update fields: %+v", got)
	}

	all, err := st.Journals(ctx)
	if err != nil {
		t.Fatalf("Journals: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("upsert must not duplicate rows, got %d", len(all))
	}
}

func TestSilentJournalsIncludesNeverContacted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := time.Now().UTC().AddDate(0, 0, -60)
	fresh := time.Now().UTC()
	journals := []*journal.Journal{
		{UUID: "10112233-4455-4677-8899-AABBCCDDEE01", Title: "Stale", ContactedAt: &stale},
		{UUID: "20112233-4455-4677-8899-AABBCCDDEE02", Title: "Fresh", ContactedAt: &fresh},
		{UUID: "30112233-4455-4677-8899-AABBCCDDEE03", Title: "Never"},
	}
	for _, j := range journals {
		if err := st.UpsertJournal(ctx, j); err != nil {
			t.Fatalf("UpsertJournal: %v", err)
		}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	silent, err := st.SilentJournals(ctx, cutoff)
	if err != nil {
		t.Fatalf("SilentJournals: %v", err)
	}
	if len(silent) != 2 {
		t.Fatalf("expected stale and never-contacted journals, got %d", len(silent))
	}
	titles := map[string]bool{}
	for _, j := range silent {
		titles[j.Title] = true
	}
	if !titles["Stale"] || !titles["Never"] {
		t.Fatalf("unexpected silent set: %v", titles)
	}
}

func TestTouchJournalContact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	j := &journal.Journal{UUID: journalUUID, Title: "Journal of Tests", Status: journal.StatusNew}
	if err := st.UpsertJournal(ctx, j); err != nil {
		t.Fatalf("UpsertJournal: %v", err)
	}

	when := time.Now().UTC()
	if err := st.TouchJournalContact(ctx, journalUUID, journal.StatusHealthy, when); err != nil {
		t.Fatalf("TouchJournalContact: %v", err)
	}

	got, err := st.JournalByUUID(ctx, journalUUID)
	if err != nil {
		t.Fatalf("JournalByUUID: %v", err)
	}
	if got.Status != journal.StatusHealthy {
		t.Fatalf("status mismatch: %s", got.Status)
	}
	if got.ContactedAt == nil {
		t.Fatal("contacted_at should be set")
	}
}

func TestAssignContainerFillsAndCloses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const maxSize = 2
	var firstContainer int64
	for i := 40; i < 43; i++ {
		dep := testsupport.NewDeposit(t, st, depositUUID(i), journalUUID)
		if err := st.AssignContainer(ctx, dep, maxSize); err != nil {
			t.Fatalf("AssignContainer: %v", err)
		}
		if !dep.HasContainer() {
			t.Fatal("deposit should hold a container after assignment")
		}
		if err := st.UpdateDeposit(ctx, dep); err != nil {
			t.Fatalf("UpdateDeposit: %v", err)
		}
		if i == 40 {
			firstContainer = dep.ContainerID
		}
		if i == 41 && dep.ContainerID != firstContainer {
			t.Fatalf("second deposit should share container %d, got %d", firstContainer, dep.ContainerID)
		}
		if i == 42 && dep.ContainerID == firstContainer {
			t.Fatal("third deposit should open a new container")
		}
	}

	members, err := st.ContainerMembers(ctx, firstContainer)
	if err != nil {
		t.Fatalf("ContainerMembers: %v", err)
	}
	if len(members) != maxSize {
		t.Fatalf("expected %d members in first container, got %d", maxSize, len(members))
	}
}

func TestAssignContainerIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dep := testsupport.NewDeposit(t, st, depositUUID(50), journalUUID)
	if err := st.AssignContainer(ctx, dep, 10); err != nil {
		t.Fatalf("AssignContainer: %v", err)
	}
	assigned := dep.ContainerID
	if err := st.AssignContainer(ctx, dep, 10); err != nil {
		t.Fatalf("AssignContainer second call: %v", err)
	}
	if dep.ContainerID != assigned {
		t.Fatalf("container assignment should not change, got %d then %d", assigned, dep.ContainerID)
	}
}

func TestBatchWriterCommitsInBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	deposits := make([]*deposit.Deposit, 0, 5)
	for i := 60; i < 65; i++ {
		deposits = append(deposits, testsupport.NewDeposit(t, st, depositUUID(i), journalUUID))
	}

	writer := st.NewBatchWriter(2)
	defer writer.Close()

	for i, dep := range deposits {
		if err := dep.Advance(deposit.StateHarvested, ""); err != nil {
			t.Fatalf("advance: %v", err)
		}
		if err := writer.Save(ctx, dep); err != nil {
			t.Fatalf("Save: %v", err)
		}
		wantCommitted := ((i + 1) / 2) * 2
		if writer.Committed() != wantCommitted {
			t.Fatalf("after %d saves expected %d committed, got %d", i+1, wantCommitted, writer.Committed())
		}
	}

	if err := writer.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if writer.Committed() != len(deposits) {
		t.Fatalf("expected all %d saves committed, got %d", len(deposits), writer.Committed())
	}

	harvested, err := st.DepositsByState(ctx, deposit.StateHarvested, 0)
	if err != nil {
		t.Fatalf("DepositsByState: %v", err)
	}
	if len(harvested) != len(deposits) {
		t.Fatalf("expected %d harvested deposits, got %d", len(deposits), len(harvested))
	}
}

func TestCheckHealthOnFreshDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("fresh database should exist and be readable: %+v", health)
	}
	if !health.IntegrityCheck {
		t.Fatalf("integrity check failed: %+v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("no tables should be missing: %v", health.MissingTables)
	}
}
