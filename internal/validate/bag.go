package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"bindery/internal/bagit"
	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/logging"
	"bindery/internal/pathing"
	"bindery/internal/services"
	"bindery/internal/stage"
)

const bagStage = "validate-bag"

// BagValidator checks that the harvested file is a well-formed BagIt
// bag whose manifest matches its payload.
type BagValidator struct {
	resolver pathing.Resolver
	logger   *slog.Logger
}

// NewBagValidator constructs the bag validation stage handler.
func NewBagValidator(cfg *config.Config, logger *slog.Logger) *BagValidator {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, bagStage))
	}
	return &BagValidator{resolver: pathing.NewResolver(cfg), logger: logger}
}

func (v *BagValidator) Name() string { return bagStage }

func (v *BagValidator) Precondition() deposit.State { return deposit.StatePayloadValidated }

func (v *BagValidator) Postcondition() deposit.State { return deposit.StateBagValidated }

func (v *BagValidator) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, v.logger)
	path := v.resolver.HarvestFile(dep)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return stage.Advance, services.Wrap(services.ErrValidation, bagStage, "open",
				fmt.Sprintf("harvested file missing at %s", path), nil)
		}
		return stage.Advance, services.Wrap(services.ErrTransient, bagStage, "open", path, err)
	}

	bag, err := bagit.Read(path)
	if err != nil {
		return stage.Advance, services.Wrap(services.ErrValidation, bagStage, "read", "not a valid bag", err)
	}
	defer bag.Close()

	if err := bag.Verify(); err != nil {
		return stage.Advance, services.Wrap(services.ErrValidation, bagStage, "verify", "bag contents do not match manifest", err)
	}

	logger.Info("bag verified",
		logging.String("path", path),
		logging.String("algorithm", bag.Algorithm),
		logging.Int("payload_files", len(bag.PayloadFiles())))
	return stage.Advance, nil
}
