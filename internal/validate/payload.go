package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/harvest"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const payloadStage = "validate-payload"

// PayloadValidator re-verifies the harvested file against the journal's
// declared size and checksum. A mismatch after a successful harvest
// means the content is corrupt on disk, which no retry can fix.
type PayloadValidator struct {
	resolver pathing.Resolver
	logger   *slog.Logger
}

// NewPayloadValidator constructs the payload validation stage handler.
func NewPayloadValidator(cfg *config.Config, logger *slog.Logger) *PayloadValidator {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, payloadStage))
	}
	return &PayloadValidator{resolver: pathing.NewResolver(cfg), logger: logger}
}

func (v *PayloadValidator) Name() string { return payloadStage }

func (v *PayloadValidator) Precondition() deposit.State { return deposit.StateHarvested }

func (v *PayloadValidator) Postcondition() deposit.State { return deposit.StatePayloadValidated }

func (v *PayloadValidator) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, v.logger)
	path := v.resolver.HarvestFile(dep)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stage.Advance, services.Wrap(services.ErrValidation, payloadStage, "stat",
				fmt.Sprintf("harvested file missing at %s", path), nil)
		}
		return stage.Advance, services.Wrap(services.ErrTransient, payloadStage, "stat", path, err)
	}

	if dep.Size > 0 && info.Size() != dep.Size {
		return stage.Advance, services.Wrap(services.ErrValidation, payloadStage, "verify",
			fmt.Sprintf("payload size mismatch: declared %d bytes, on disk %d", dep.Size, info.Size()), nil)
	}

	if dep.ChecksumValue != "" {
		checksum, err := harvest.ChecksumFile(path, dep.ChecksumType)
		if err != nil {
			return stage.Advance, services.Wrap(services.ErrTransient, payloadStage, "checksum", path, err)
		}
		if !strings.EqualFold(checksum, dep.ChecksumValue) {
			return stage.Advance, services.Wrap(services.ErrValidation, payloadStage, "verify",
				fmt.Sprintf("payload %s checksum mismatch: declared %s, computed %s",
					dep.ChecksumType, dep.ChecksumValue, strings.ToUpper(checksum)), nil)
		}
	}

	logger.Info("payload verified", logging.String("path", path), logging.Int64("bytes", info.Size()))
	return stage.Advance, nil
}
