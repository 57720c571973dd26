// Package scan inspects validated bags for content the preservation
// network's policy disallows. A policy hit fails the deposit
// permanently; the journal must correct and resubmit.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"bindery/internal/bagit"
	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const stageName = "scan"

// Scanner checks payload file names against the disallowed extension
// list.
type Scanner struct {
	resolver   pathing.Resolver
	disallowed map[string]struct{}
	logger     *slog.Logger
}

// New constructs the scan stage handler.
func New(cfg *config.Config, logger *slog.Logger) *Scanner {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, stageName))
	}
	disallowed := make(map[string]struct{}, len(cfg.Scan.DisallowedExtensions))
	for _, ext := range cfg.Scan.DisallowedExtensions {
		disallowed[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		resolver:   pathing.NewResolver(cfg),
		disallowed: disallowed,
		logger:     logger,
	}
}

func (s *Scanner) Name() string { return stageName }

func (s *Scanner) Precondition() deposit.State { return deposit.StateXMLValidated }

func (s *Scanner) Postcondition() deposit.State { return deposit.StateScanned }

func (s *Scanner) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, s.logger)
	path := s.resolver.HarvestFile(dep)

	bag, err := bagit.Read(path)
	if err != nil {
		return stage.Advance, services.Wrap(services.ErrValidation, stageName, "read", "not a valid bag", err)
	}
	defer bag.Close()

	var violations []string
	for _, name := range bag.PayloadFiles() {
		ext := strings.ToLower(filepath.Ext(name))
		if _, hit := s.disallowed[ext]; hit {
			violations = append(violations, name)
		}
	}
	if len(violations) > 0 {
		return stage.Advance, services.Wrap(services.ErrPolicy, stageName, "inspect",
			fmt.Sprintf("disallowed content: %s", strings.Join(violations, ", ")), nil)
	}

	logger.Info("scan clean", logging.Int("payload_files", len(bag.PayloadFiles())))
	return stage.Advance, nil
}
