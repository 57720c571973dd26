// Package pathing maps deposits to their on-disk locations. The mapping
// is a pure function of the deposit UUID and the configured roots, so
// any two deposits resolve to distinct paths and re-runs resolve to the
// same ones.
package pathing

import (
	"path/filepath"

	"bindery/internal/config"
	"bindery/internal/deposit"
)

// Resolver derives deposit file locations from configured directories.
type Resolver struct {
	harvestDir    string
	processingDir string
	stagingDir    string
}

// NewResolver builds a resolver from configuration.
func NewResolver(cfg *config.Config) Resolver {
	return Resolver{
		harvestDir:    cfg.Paths.HarvestDir,
		processingDir: cfg.Paths.ProcessingDir,
		stagingDir:    cfg.Paths.StagingDir,
	}
}

// HarvestFile is where the raw content fetched from the journal lives.
func (r Resolver) HarvestFile(dep *deposit.Deposit) string {
	return filepath.Join(r.harvestDir, dep.JournalUUID, dep.UUID+".zip")
}

// ProcessingBag is the working directory the reserializer unpacks and
// rebuilds content in before producing the staging bag.
func (r Resolver) ProcessingBag(dep *deposit.Deposit) string {
	return filepath.Join(r.processingDir, dep.UUID)
}

// StagingBag is the packaged bag awaiting (or already past) network
// submission.
func (r Resolver) StagingBag(dep *deposit.Deposit) string {
	return filepath.Join(r.stagingDir, dep.UUID+".zip")
}
