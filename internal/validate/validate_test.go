package validate_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
	"bindery/internal/testsupport"
	"bindery/internal/validate"
)

const (
	testDepositUUID = "A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C5D"
	testJournalUUID = "00112233-4455-4677-8899-AABBCCDDEEFF"
)

func harvestedDeposit(t *testing.T, cfg *config.Config, payload map[string][]byte) *deposit.Deposit {
	t.Helper()
	dep, err := deposit.New(testDepositUUID, testJournalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	target := pathing.NewResolver(cfg).HarvestFile(dep)
	testsupport.WriteBag(t, target, payload)

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat bag: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read bag: %v", err)
	}
	sum := sha1.Sum(data)
	dep.Size = info.Size()
	dep.SetChecksum("sha1", hex.EncodeToString(sum[:]))
	return dep
}

func TestPayloadValidatorAcceptsMatchingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, nil)

	v := validate.NewPayloadValidator(cfg, logging.NewNop())
	outcome, err := v.Process(context.Background(), dep)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != stage.Advance {
		t.Fatalf("outcome = %v, want Advance", outcome)
	}
}

func TestPayloadValidatorRejectsSizeMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, nil)
	dep.Size++

	v := validate.NewPayloadValidator(cfg, logging.NewNop())
	_, err := v.Process(context.Background(), dep)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("size mismatch should be a validation error, got %v", err)
	}
}

func TestPayloadValidatorRejectsChecksumMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, nil)
	dep.SetChecksum("sha1", "0000000000000000000000000000000000000000")

	v := validate.NewPayloadValidator(cfg, logging.NewNop())
	_, err := v.Process(context.Background(), dep)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("checksum mismatch should be a validation error, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("checksum mismatch after harvest is permanent")
	}
}

func TestPayloadValidatorTreatsMissingFileAsValidationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep, err := deposit.New(testDepositUUID, testJournalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	dep.Size = 10
	dep.SetChecksum("sha1", "0000000000000000000000000000000000000000")

	v := validate.NewPayloadValidator(cfg, logging.NewNop())
	_, procErr := v.Process(context.Background(), dep)
	if !errors.Is(procErr, services.ErrValidation) {
		t.Fatalf("missing harvest file should be a validation error, got %v", procErr)
	}
}

func TestBagValidatorAcceptsWellFormedBag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, nil)

	v := validate.NewBagValidator(cfg, logging.NewNop())
	outcome, err := v.Process(context.Background(), dep)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != stage.Advance {
		t.Fatalf("outcome = %v, want Advance", outcome)
	}
}

func TestBagValidatorRejectsNonBagZip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep, err := deposit.New(testDepositUUID, testJournalUUID)
	if err != nil {
		t.Fatalf("deposit.New: %v", err)
	}
	target := pathing.NewResolver(cfg).HarvestFile(dep)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := validate.NewBagValidator(cfg, logging.NewNop())
	_, procErr := v.Process(context.Background(), dep)
	if !errors.Is(procErr, services.ErrValidation) {
		t.Fatalf("non-bag content should be a validation error, got %v", procErr)
	}
}

func TestXMLValidatorAcceptsWellFormedExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, map[string][]byte{
		"export.xml":     []byte(`<?xml version="1.0"?><issue><article>a</article></issue>`),
		"media/logo.png": {0x89, 0x50},
	})

	v := validate.NewXMLValidator(cfg, logging.NewNop())
	outcome, err := v.Process(context.Background(), dep)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != stage.Advance {
		t.Fatalf("outcome = %v, want Advance", outcome)
	}
}

func TestXMLValidatorRejectsMalformedExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, map[string][]byte{
		"export.xml": []byte(`<issue><article>unclosed`),
	})

	v := validate.NewXMLValidator(cfg, logging.NewNop())
	_, err := v.Process(context.Background(), dep)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("malformed XML should be a validation error, got %v", err)
	}
}

func TestXMLValidatorRequiresAnExportDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dep := harvestedDeposit(t, cfg, map[string][]byte{
		"media/logo.png": {0x89, 0x50},
	})

	v := validate.NewXMLValidator(cfg, logging.NewNop())
	_, err := v.Process(context.Background(), dep)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bag without export XML should be a validation error, got %v", err)
	}
}
