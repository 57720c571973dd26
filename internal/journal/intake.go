package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/services"
)

// defaultOJSVersion is assumed for journals that do not report one.
// Versions below the configured minimum are still recorded; the ping
// service is what enforces the whitelist.
const defaultOJSVersion = "2.4.8"

// Registry is the persistence surface the intake service needs.
type Registry interface {
	UpsertJournal(ctx context.Context, j *Journal) error
	CreateDeposit(ctx context.Context, dep *deposit.Deposit) error
	DepositByUUID(ctx context.Context, depositUUID string) (*deposit.Deposit, error)
}

// Notification is a deposit announcement received from a journal's
// OJS plugin. It carries both the journal's self-description and the
// deposit to harvest.
type Notification struct {
	JournalUUID string `json:"journalUuid"`
	Title       string `json:"title"`
	GatewayURL  string `json:"gatewayUrl"`
	ISSN        string `json:"issn"`
	Email       string `json:"email"`
	OJSVersion  string `json:"ojsVersion"`

	DepositUUID   string            `json:"depositUuid"`
	Action        string            `json:"action"`
	Volume        string            `json:"volume"`
	Issue         string            `json:"issue"`
	PubDate       string            `json:"pubDate"`
	FileType      string            `json:"fileType"`
	SourceURL     string            `json:"sourceUrl"`
	Size          int64             `json:"size"`
	ChecksumType  string            `json:"checksumType"`
	ChecksumValue string            `json:"checksumValue"`
	License       map[string]string `json:"license"`
}

// Intake registers journals and records announced deposits.
type Intake struct {
	registry Registry
	logger   *slog.Logger
}

// NewIntake constructs the intake service.
func NewIntake(registry Registry, logger *slog.Logger) *Intake {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, "intake"))
	}
	return &Intake{registry: registry, logger: logger}
}

// Accept validates a notification, upserts the announcing journal and
// creates the deposit in its initial state. A notification for an
// already-known deposit UUID is rejected.
func (i *Intake) Accept(ctx context.Context, note Notification) (*deposit.Deposit, error) {
	journalUUID, err := deposit.NormalizeUUID(note.JournalUUID)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "intake", "accept", "journal uuid", err)
	}
	depositUUID, err := deposit.NormalizeUUID(note.DepositUUID)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "intake", "accept", "deposit uuid", err)
	}
	if strings.TrimSpace(note.SourceURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "intake", "accept", "notification has no source url", nil)
	}
	if note.Size <= 0 {
		return nil, services.Wrap(services.ErrValidation, "intake", "accept", "notification has no payload size", nil)
	}

	existing, err := i.registry.DepositByUUID(ctx, depositUUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, services.Wrap(services.ErrValidation, "intake", "accept",
			fmt.Sprintf("deposit %s already registered", depositUUID), nil)
	}

	version := strings.TrimSpace(note.OJSVersion)
	if version == "" {
		version = defaultOJSVersion
	}
	now := time.Now().UTC()
	j := &Journal{
		UUID:        journalUUID,
		Title:       strings.TrimSpace(note.Title),
		GatewayURL:  strings.TrimSpace(note.GatewayURL),
		ISSN:        strings.TrimSpace(note.ISSN),
		Email:       strings.TrimSpace(note.Email),
		OJSVersion:  version,
		Status:      StatusHealthy,
		ContactedAt: &now,
	}
	if err := i.registry.UpsertJournal(ctx, j); err != nil {
		return nil, err
	}

	dep, err := deposit.New(depositUUID, journalUUID)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "intake", "accept", "deposit uuid", err)
	}
	dep.Action = strings.TrimSpace(note.Action)
	dep.Volume = strings.TrimSpace(note.Volume)
	dep.Issue = strings.TrimSpace(note.Issue)
	if raw := strings.TrimSpace(note.PubDate); raw != "" {
		pubDate, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			return nil, services.Wrap(services.ErrValidation, "intake", "accept",
				fmt.Sprintf("publication date %q", raw), parseErr)
		}
		dep.PubDate = pubDate
	}
	dep.FileType = strings.TrimSpace(note.FileType)
	dep.SourceURL = strings.TrimSpace(note.SourceURL)
	dep.Size = note.Size
	dep.SetChecksum(note.ChecksumType, note.ChecksumValue)
	dep.SetLicense(note.License)
	if err := i.registry.CreateDeposit(ctx, dep); err != nil {
		return nil, err
	}

	if i.logger != nil {
		i.logger.Info("deposit registered",
			logging.String(logging.FieldDepositUUID, dep.UUID),
			logging.String(logging.FieldJournalUUID, dep.JournalUUID),
			logging.Int64("size", dep.Size))
	}
	return dep, nil
}
