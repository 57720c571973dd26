package validate

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
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

const xmlStage = "validate-xml"

// XMLValidator checks the export documents inside the bag for
// well-formedness. Every journal deposit carries at least one XML
// export; a bag without one is malformed.
type XMLValidator struct {
	resolver pathing.Resolver
	logger   *slog.Logger
}

// NewXMLValidator constructs the XML validation stage handler.
func NewXMLValidator(cfg *config.Config, logger *slog.Logger) *XMLValidator {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, xmlStage))
	}
	return &XMLValidator{resolver: pathing.NewResolver(cfg), logger: logger}
}

func (v *XMLValidator) Name() string { return xmlStage }

func (v *XMLValidator) Precondition() deposit.State { return deposit.StateBagValidated }

func (v *XMLValidator) Postcondition() deposit.State { return deposit.StateXMLValidated }

func (v *XMLValidator) Process(ctx context.Context, dep *deposit.Deposit) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, v.logger)
	path := v.resolver.HarvestFile(dep)

	bag, err := bagit.Read(path)
	if err != nil {
		return stage.Advance, services.Wrap(services.ErrValidation, xmlStage, "read", "not a valid bag", err)
	}
	defer bag.Close()

	checked := 0
	for _, name := range bag.PayloadFiles() {
		if !strings.EqualFold(filepath.Ext(name), ".xml") {
			continue
		}
		if err := v.checkWellFormed(bag, name); err != nil {
			return stage.Advance, err
		}
		checked++
	}
	if checked == 0 {
		return stage.Advance, services.Wrap(services.ErrValidation, xmlStage, "inspect",
			"bag contains no export XML document", nil)
	}

	logger.Info("export XML verified", logging.Int("documents", checked))
	return stage.Advance, nil
}

func (v *XMLValidator) checkWellFormed(bag *bagit.Bag, name string) error {
	rc, err := bag.Open(name)
	if err != nil {
		return services.Wrap(services.ErrValidation, xmlStage, "open", name, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	for {
		_, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrValidation, xmlStage, "parse",
				fmt.Sprintf("%s is not well-formed XML", name), err)
		}
	}
}
