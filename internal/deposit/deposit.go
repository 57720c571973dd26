package deposit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deposit is one unit of journal content tracked through the preservation
// pipeline. Mutation happens through the transition helpers below; the
// struct fields themselves carry no behavior.
type Deposit struct {
	ID          int64
	UUID        string // stored upper-case, immutable after creation
	JournalUUID string
	ContainerID int64 // 0 until the reserializer assigns an AU container

	Action    string
	Volume    string
	Issue     string
	PubDate   time.Time
	FileType  string
	SourceURL string
	Size      int64

	ChecksumType  string // stored lower-case
	ChecksumValue string // stored upper-case
	License       map[string]string

	State         State
	ErrorLog      []string
	ProcessingLog string
	// Attempts counts retryable failures in the current state and resets
	// on every successful transition. The harvest stage caps against
	// harvest.max_attempts; other stages cap against pipeline.max_attempts.
	Attempts int
	// FailedState records the precondition state a deposit held when it
	// failed, so an operator retry can restore it.
	FailedState State

	PackageSize          int64
	PackageChecksumType  string // stored lower-case
	PackageChecksumValue string // stored upper-case

	PLNState       string // network-reported state, distinct from State
	DepositDate    *time.Time
	DepositReceipt string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds a deposit in the initial state with all case normalization
// applied. License entries with empty values are dropped.
func New(depositUUID, journalUUID string) (*Deposit, error) {
	normalized, err := NormalizeUUID(depositUUID)
	if err != nil {
		return nil, err
	}
	journal, err := NormalizeUUID(journalUUID)
	if err != nil {
		return nil, fmt.Errorf("journal uuid: %w", err)
	}
	return &Deposit{
		UUID:        normalized,
		JournalUUID: journal,
		State:       StateDepositedByJournal,
		License:     make(map[string]string),
	}, nil
}

// NormalizeUUID validates a UUID string and returns its canonical
// upper-case form. Lookups elsewhere are case-insensitive because storage
// always holds this form.
func NormalizeUUID(value string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("parse uuid %q: %w", value, err)
	}
	return strings.ToUpper(parsed.String()), nil
}

// SetChecksum records the declared content checksum, normalizing type to
// lower-case and value to upper-case.
func (d *Deposit) SetChecksum(checksumType, checksumValue string) {
	d.ChecksumType = strings.ToLower(strings.TrimSpace(checksumType))
	d.ChecksumValue = strings.ToUpper(strings.TrimSpace(checksumValue))
}

// SetPackageChecksum records the post-packaging checksum with the same
// normalization as SetChecksum.
func (d *Deposit) SetPackageChecksum(checksumType, checksumValue string) {
	d.PackageChecksumType = strings.ToLower(strings.TrimSpace(checksumType))
	d.PackageChecksumValue = strings.ToUpper(strings.TrimSpace(checksumValue))
}

// SetLicense replaces the license terms, dropping entries whose value is
// empty after trimming.
func (d *Deposit) SetLicense(terms map[string]string) {
	cleaned := make(map[string]string, len(terms))
	for key, value := range terms {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		cleaned[key] = value
	}
	d.License = cleaned
}

// Advance moves the deposit one step along the pipeline and appends a
// processing-log entry. It rejects edges the state machine does not
// define, which keeps transitions monotonic.
func (d *Deposit) Advance(to State, note string) error {
	if !CanTransition(d.State, to) {
		return fmt.Errorf("illegal transition %s -> %s for deposit %s", d.State, to, d.UUID)
	}
	from := d.State
	d.State = to
	d.Attempts = 0
	if note == "" {
		note = fmt.Sprintf("State changed from %s to %s.", from, to)
	}
	d.AppendLog(note)
	return nil
}

// ForceState sets the state outside the normal transition table, for
// operator-triggered reprocessing. The transition is still logged.
func (d *Deposit) ForceState(to State, note string) {
	from := d.State
	d.State = to
	d.FailedState = ""
	d.Attempts = 0
	if note == "" {
		note = fmt.Sprintf("State forced from %s to %s.", from, to)
	}
	d.AppendLog(note)
}

// Fail moves the deposit to the failed side state, recording the state it
// failed in and logging the reason. The error log accumulates; it is
// never cleared by the pipeline.
func (d *Deposit) Fail(reason string) error {
	if !CanTransition(d.State, StateFailed) {
		return fmt.Errorf("illegal transition %s -> %s for deposit %s", d.State, StateFailed, d.UUID)
	}
	d.FailedState = d.State
	d.State = StateFailed
	d.AppendError(reason)
	d.AppendLog(fmt.Sprintf("Deposit failed in state %s: %s", d.FailedState, reason))
	return nil
}

// ResetFailed restores a failed deposit to the precondition state it
// failed in so the pipeline picks it up again. Error and processing logs
// are preserved; only the attempt counter resets.
func (d *Deposit) ResetFailed() error {
	if d.State != StateFailed {
		return fmt.Errorf("deposit %s is %s, not failed", d.UUID, d.State)
	}
	if d.FailedState == "" {
		return fmt.Errorf("deposit %s has no recorded failure state", d.UUID)
	}
	d.State = d.FailedState
	d.FailedState = ""
	d.Attempts = 0
	d.AppendLog(fmt.Sprintf("Reset to state %s by operator.", d.State))
	return nil
}

// AppendError appends a human-readable entry to the append-only error log.
func (d *Deposit) AppendError(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	d.ErrorLog = append(d.ErrorLog, message)
}

// AppendLog appends a timestamped block to the processing log. Entries
// are blank-line separated and never truncated.
func (d *Deposit) AppendLog(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	entry := fmt.Sprintf("%s\n%s", time.Now().UTC().Format(time.RFC3339), message)
	if d.ProcessingLog == "" {
		d.ProcessingLog = entry
		return
	}
	d.ProcessingLog = d.ProcessingLog + "\n\n" + entry
}

// HasContainer reports whether the deposit has been bundled into an AU
// container. A deposit with no container cannot be submitted to the
// network.
func (d *Deposit) HasContainer() bool {
	return d.ContainerID > 0
}
