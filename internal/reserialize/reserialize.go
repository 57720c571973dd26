// Package reserialize repackages a scanned harvest bag into the staging
// bag submitted to the preservation network. The payload is extracted to
// a processing workspace, rewritten into a fresh bag with provider tags,
// and the package checksum and AU container assignment are recorded on
// the deposit.
package reserialize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/bagit"
	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/fileutil"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const stageName = "reserialize"

const packageAlgorithm = "sha1"

// Assigner places a deposit into an AU container.
type Assigner interface {
	AssignContainer(ctx context.Context, dep *deposit.Deposit, maxSize int) error
}

// Reserializer builds staging bags for scanned deposits.
type Reserializer struct {
	cfg      *config.Config
	resolver pathing.Resolver
	assigner Assigner
	logger   *slog.Logger
}

// New constructs the reserialize stage handler.
func New(cfg *config.Config, assigner Assigner, logger *slog.Logger) *Reserializer {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, stageName))
	}
	return &Reserializer{
		cfg:      cfg,
		resolver: pathing.NewResolver(cfg),
		assigner: assigner,
		logger:   logger,
	}
}

func (r *Reserializer) Name() string { return stageName }

func (r *Reserializer) Precondition() deposit.State { return deposit.StateScanned }

func (r *Reserializer) Postcondition() deposit.State { return deposit.StateReserialized }

// HealthCheck verifies the processing and staging directories accept writes.
func (r *Reserializer) HealthCheck(ctx context.Context) stage.Health {
	for _, dir := range []string{r.cfg.Paths.ProcessingDir, r.cfg.Paths.StagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stage.Unhealthy(stageName, "create "+dir+": "+err.Error())
		}
		probe := filepath.Join(dir, ".bindery-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			return stage.Unhealthy(stageName, "write "+dir+": "+err.Error())
		}
		_ = os.Remove(probe)
	}
	return stage.Healthy(stageName)
}

func (r *Reserializer) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)

	source, err := bagit.Read(r.resolver.HarvestFile(dep))
	if err != nil {
		return stage.Advance, services.Wrap(services.ErrValidation, stageName, "read", "harvest bag unreadable", err)
	}
	defer source.Close()

	workspace := r.resolver.ProcessingBag(dep)
	files, err := r.extractPayload(source, workspace)
	if err != nil {
		return stage.Advance, err
	}

	staging := r.resolver.StagingBag(dep)
	if err := os.MkdirAll(filepath.Dir(staging), 0o755); err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "prepare", "create staging directory", err)
	}
	tags := map[string]string{
		"External-Identifier":    dep.UUID,
		"Bindery-Journal-UUID":   dep.JournalUUID,
		"Bindery-Deposit-Volume": dep.Volume,
		"Bindery-Deposit-Issue":  dep.Issue,
	}
	if !dep.PubDate.IsZero() {
		tags["Bindery-Deposit-PubDate"] = dep.PubDate.Format("2006-01-02")
	}
	// Build inside the workspace first so a crash mid-write never leaves
	// a partial bag at the staging path.
	built := filepath.Join(workspace, filepath.Base(staging)+".part")
	if err := bagit.Create(built, files, tags, packageAlgorithm); err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "create", "write staging bag", err)
	}
	if err := fileutil.MoveFile(built, staging); err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "create", "move staging bag", err)
	}

	info, err := os.Stat(staging)
	if err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "stat", "stat staging bag", err)
	}
	sum, err := checksumFile(staging, packageAlgorithm)
	if err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "checksum", "checksum staging bag", err)
	}
	dep.PackageSize = info.Size()
	dep.SetPackageChecksum(packageAlgorithm, sum)

	if err := r.assigner.AssignContainer(ctx, dep, r.cfg.Network.ContainerSize); err != nil {
		return stage.Advance, services.Wrap(services.ErrTransient, stageName, "container", "assign container", err)
	}

	logger.Info("staging bag written",
		logging.String("path", staging),
		logging.Int64("size", dep.PackageSize),
		logging.Int64("container", dep.ContainerID))
	return stage.Advance, nil
}

// extractPayload copies the source bag's payload into the processing
// workspace and returns the file list for the staging bag. The workspace
// is rebuilt from scratch so a crashed earlier attempt leaves no stale
// entries behind.
func (r *Reserializer) extractPayload(source *bagit.Bag, workspace string) ([]bagit.File, error) {
	if err := os.RemoveAll(workspace); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "extract", "reset workspace", err)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "extract", "create workspace", err)
	}

	var files []bagit.File
	for _, name := range source.PayloadFiles() {
		rel := strings.TrimPrefix(name, "data/")
		dest := filepath.Join(workspace, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, services.Wrap(services.ErrTransient, stageName, "extract", "create payload directory", err)
		}
		if err := copyEntry(source, name, dest); err != nil {
			return nil, err
		}
		files = append(files, bagit.File{Name: rel, Source: dest})
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "extract", "harvest bag has an empty payload", nil)
	}
	return files, nil
}

func checksumFile(path, algorithm string) (string, error) {
	h, err := bagit.NewHash(algorithm)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func copyEntry(source *bagit.Bag, name, dest string) error {
	rc, err := source.Open(name)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "extract", "open payload entry "+name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "extract", "create "+dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return services.Wrap(services.ErrTransient, stageName, "extract", "copy "+name, err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "extract", "close "+dest, err)
	}
	return nil
}
