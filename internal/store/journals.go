package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bindery/internal/journal"
)

const journalColumns = `uuid, title, gateway_url, issn, email, ojs_version, status, contacted_at, created_at, updated_at`

// UpsertJournal inserts or updates a journal row keyed by UUID.
func (s *Store) UpsertJournal(ctx context.Context, j *journal.Journal) error {
	if j == nil {
		return errors.New("journal is nil")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = journal.StatusNew
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO journals (uuid, title, gateway_url, issn, email, ojs_version, status, contacted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET
			title = excluded.title,
			gateway_url = excluded.gateway_url,
			issn = excluded.issn,
			email = excluded.email,
			ojs_version = excluded.ojs_version,
			status = excluded.status,
			contacted_at = excluded.contacted_at,
			updated_at = excluded.updated_at`,
		j.UUID,
		nullableString(j.Title),
		nullableString(j.GatewayURL),
		nullableString(j.ISSN),
		nullableString(j.Email),
		nullableString(j.OJSVersion),
		j.Status,
		nullableTime(j.ContactedAt),
		j.CreatedAt.Format(time.RFC3339Nano),
		j.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert journal: %w", err)
	}
	return nil
}

// JournalByUUID fetches a journal case-insensitively, nil when absent.
func (s *Store) JournalByUUID(ctx context.Context, journalUUID string) (*journal.Journal, error) {
	ctx = ensureContext(ctx)
	normalized := strings.ToUpper(strings.TrimSpace(journalUUID))
	row := s.db.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM journals WHERE uuid = ?`, normalized)
	j, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get journal: %w", err)
	}
	return j, nil
}

// Journals returns every registered journal ordered by title.
func (s *Store) Journals(ctx context.Context) ([]*journal.Journal, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+journalColumns+` FROM journals ORDER BY title, uuid`)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	defer rows.Close()

	var journals []*journal.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

// TouchJournalContact stamps the journal's last-contact time and status.
func (s *Store) TouchJournalContact(ctx context.Context, journalUUID, status string, when time.Time) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(
		ctx,
		`UPDATE journals SET contacted_at = ?, status = ?, updated_at = ? WHERE uuid = ?`,
		when.UTC().Format(time.RFC3339Nano),
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		strings.ToUpper(strings.TrimSpace(journalUUID)),
	)
	if err != nil {
		return fmt.Errorf("touch journal contact: %w", err)
	}
	return nil
}

// SilentJournals returns journals whose last contact predates the cutoff,
// including journals never contacted at all.
func (s *Store) SilentJournals(ctx context.Context, cutoff time.Time) ([]*journal.Journal, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+journalColumns+` FROM journals
		 WHERE contacted_at IS NULL OR contacted_at < ?
		 ORDER BY title, uuid`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("silent journals: %w", err)
	}
	defer rows.Close()

	var journals []*journal.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

func scanJournal(scanner interface{ Scan(dest ...any) error }) (*journal.Journal, error) {
	var (
		uuidStr      string
		title        sql.NullString
		gatewayURL   sql.NullString
		issn         sql.NullString
		email        sql.NullString
		ojsVersion   sql.NullString
		status       sql.NullString
		contactedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&uuidStr, &title, &gatewayURL, &issn, &email, &ojsVersion,
		&status, &contactedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	j := &journal.Journal{
		UUID:       uuidStr,
		Title:      title.String,
		GatewayURL: gatewayURL.String,
		ISSN:       issn.String,
		Email:      email.String,
		OJSVersion: ojsVersion.String,
		Status:     status.String,
	}
	if contactedRaw.Valid {
		if contacted, err := parseTimeString(contactedRaw.String); err == nil {
			j.ContactedAt = &contacted
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		j.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		j.UpdatedAt = updated
	}
	return j, nil
}
