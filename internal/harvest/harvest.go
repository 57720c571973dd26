// Package harvest fetches deposit content from journals and verifies it
// against the declared size and checksum before the pipeline validates
// it further.
package harvest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bindery/internal/bagit"
	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const stageName = "harvest"

// Harvester downloads deposit content from the journal's source URL.
type Harvester struct {
	cfg      *config.Config
	resolver pathing.Resolver
	logger   *slog.Logger
	client   *http.Client
}

// New constructs the harvest stage handler.
func New(cfg *config.Config, logger *slog.Logger) *Harvester {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, stageName))
	}
	timeout := time.Duration(cfg.Harvest.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Harvester{
		cfg:      cfg,
		resolver: pathing.NewResolver(cfg),
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
	}
}

func (h *Harvester) Name() string { return stageName }

func (h *Harvester) Precondition() deposit.State { return deposit.StateDepositedByJournal }

func (h *Harvester) Postcondition() deposit.State { return deposit.StateHarvested }

// MaxAttempts caps harvest retries; the pipeline fails the deposit
// permanently once the cap is reached.
func (h *Harvester) MaxAttempts() int { return h.cfg.Harvest.MaxAttempts }

// HealthCheck verifies the harvest directory is writable.
func (h *Harvester) HealthCheck(ctx context.Context) stage.Health {
	probe := filepath.Join(h.cfg.Paths.HarvestDir, ".probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("harvest directory not writable: %v", err))
	}
	_ = os.Remove(probe)
	return stage.Healthy(stageName)
}

// Process fetches the deposit's source URL into the harvest location.
// All failures here are retryable; the attempt cap converts exhaustion
// into a permanent failure.
func (h *Harvester) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, h.logger)
	target := h.resolver.HarvestFile(dep)

	// A file left by a crashed run that already verifies is done.
	if verified, err := h.verifyFile(target, dep); err == nil && verified {
		logger.Info("harvest file already present and verified",
			logging.String("path", target))
		return stage.Advance, nil
	}

	if dep.SourceURL == "" {
		return stage.Advance, services.Wrap(services.ErrValidation, stageName, "fetch", "deposit has no source URL", nil)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "prepare", "create harvest directory", err)
	}

	logger.Info("fetching deposit content",
		logging.String("source_url", dep.SourceURL),
		logging.Int64("declared_size", dep.Size),
		logging.Int("attempt", dep.Attempts+1))

	written, checksum, err := h.download(ctx, dep.SourceURL, target, dep.ChecksumType)
	if err != nil {
		return stage.Advance, err
	}

	if dep.Size > 0 && written != dep.Size {
		_ = os.Remove(target)
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "verify",
			fmt.Sprintf("size mismatch: journal declared %d bytes, received %d", dep.Size, written), nil)
	}
	if dep.ChecksumValue != "" && !strings.EqualFold(checksum, dep.ChecksumValue) {
		_ = os.Remove(target)
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "verify",
			fmt.Sprintf("%s checksum mismatch: journal declared %s, received %s",
				dep.ChecksumType, dep.ChecksumValue, strings.ToUpper(checksum)), nil)
	}

	logger.Info("harvest complete",
		logging.String("path", target),
		logging.Int64("bytes", written))
	return stage.Advance, nil
}

// download streams the source URL to a temporary sibling of target,
// hashing as it copies, and renames into place only after a complete
// read. A crash mid-download leaves only a temp file behind.
func (h *Harvester) download(ctx context.Context, sourceURL, target, checksumType string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, "", services.Wrap(services.ErrValidation, stageName, "fetch", "malformed source URL", err)
	}
	req.Header.Set("User-Agent", "bindery/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, "", services.Wrap(services.ErrNetwork, stageName, "fetch", "journal unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode >= 500 {
			marker = services.ErrNetwork
		}
		return 0, "", services.Wrap(marker, stageName, "fetch",
			fmt.Sprintf("journal responded with status %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".part-*")
	if err != nil {
		return 0, "", services.Wrap(services.ErrTransient, stageName, "fetch", "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher, err := bagit.NewHash(effectiveAlgorithm(checksumType))
	if err != nil {
		_ = tmp.Close()
		return 0, "", services.Wrap(services.ErrValidation, stageName, "fetch", "unknown checksum type", err)
	}

	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if err != nil {
		_ = tmp.Close()
		return 0, "", services.Wrap(services.ErrNetwork, stageName, "fetch", "download interrupted", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", services.Wrap(services.ErrTransient, stageName, "fetch", "close temp file", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return 0, "", services.Wrap(services.ErrTransient, stageName, "fetch", "move download into place", err)
	}
	return written, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *Harvester) verifyFile(path string, dep *deposit.Deposit) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if dep.Size > 0 && info.Size() != dep.Size {
		return false, nil
	}
	if dep.ChecksumValue == "" {
		return true, nil
	}
	checksum, err := ChecksumFile(path, effectiveAlgorithm(dep.ChecksumType))
	if err != nil {
		return false, err
	}
	return strings.EqualFold(checksum, dep.ChecksumValue), nil
}

// ChecksumFile computes the hex checksum of a file with the given
// algorithm.
func ChecksumFile(path, algorithm string) (string, error) {
	hasher, err := bagit.NewHash(algorithm)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func effectiveAlgorithm(checksumType string) string {
	if strings.TrimSpace(checksumType) == "" {
		return "sha1"
	}
	return checksumType
}
