package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/services"
)

// PingRegistry is the persistence surface the ping service needs.
type PingRegistry interface {
	Journals(ctx context.Context) ([]*Journal, error)
	TouchJournalContact(ctx context.Context, journalUUID, status string, when time.Time) error
}

// PingResult records the outcome of contacting one journal.
type PingResult struct {
	Journal    *Journal
	Skipped    bool   // below the minimum OJS version
	Reachable  bool
	OJSVersion string // version the gateway reported, when reachable
	Err        error
}

// Pinger contacts journal gateways to confirm liveness and refresh the
// recorded OJS version. Journals below the configured minimum version
// are skipped, never contacted.
type Pinger struct {
	registry   PingRegistry
	minVersion string
	client     *http.Client
	logger     *slog.Logger
}

// NewPinger constructs the ping service.
func NewPinger(cfg *config.Config, registry PingRegistry, logger *slog.Logger) *Pinger {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, "ping"))
	}
	timeout := time.Duration(cfg.Journals.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pinger{
		registry:   registry,
		minVersion: cfg.Journals.MinOJSVersion,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// PingAll contacts every whitelisted journal. With dryRun set it only
// reports which journals would be contacted; no requests are sent and no
// contact timestamps move.
func (p *Pinger) PingAll(ctx context.Context, dryRun bool) ([]PingResult, error) {
	journals, err := p.registry.Journals(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]PingResult, 0, len(journals))
	for _, j := range journals {
		result := PingResult{Journal: j}
		if !VersionAtLeast(j.OJSVersion, p.minVersion) {
			result.Skipped = true
			results = append(results, result)
			continue
		}
		if dryRun {
			result.Reachable = true
			results = append(results, result)
			continue
		}

		version, err := p.ping(ctx, j)
		if err != nil {
			result.Err = err
			if touchErr := p.registry.TouchJournalContact(ctx, j.UUID, StatusUnreachable, time.Now().UTC()); touchErr != nil {
				return nil, touchErr
			}
			if p.logger != nil {
				p.logger.Warn("journal unreachable",
					logging.String(logging.FieldJournalUUID, j.UUID),
					logging.Error(err))
			}
			results = append(results, result)
			continue
		}

		result.Reachable = true
		result.OJSVersion = version
		if err := p.registry.TouchJournalContact(ctx, j.UUID, StatusHealthy, time.Now().UTC()); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (p *Pinger) ping(ctx context.Context, j *Journal) (string, error) {
	gateway := strings.TrimSpace(j.GatewayURL)
	if gateway == "" {
		return "", services.Wrap(services.ErrConfiguration, "ping", "request", "journal has no gateway url", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway, nil)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "ping", "request", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "ping", "request", "contact gateway", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrNetwork, "ping", "request",
			fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}

	var body struct {
		OJSVersion string `json:"ojsVersion"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", services.Wrap(services.ErrNetwork, "ping", "request", "decode gateway response", err)
	}
	return strings.TrimSpace(body.OJSVersion), nil
}

// VersionAtLeast reports whether a dotted version string meets the
// minimum. Non-numeric segments compare as zero; a missing segment
// compares as zero.
func VersionAtLeast(version, minimum string) bool {
	if strings.TrimSpace(minimum) == "" {
		return true
	}
	got := strings.Split(strings.TrimSpace(version), ".")
	want := strings.Split(strings.TrimSpace(minimum), ".")
	for i := 0; i < len(got) || i < len(want); i++ {
		g := segment(got, i)
		w := segment(want, i)
		if g != w {
			return g > w
		}
	}
	return true
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}
