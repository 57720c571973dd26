package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bindery/internal/deposit"
)

const depositColumns = `id, deposit_uuid, journal_uuid, container_id, action, volume, issue,
	pub_date, file_type, source_url, size, checksum_type, checksum_value, license_json,
	state, error_log_json, processing_log, attempts, failed_state,
	package_size, package_checksum_type, package_checksum_value,
	pln_state, deposit_date, deposit_receipt, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateDeposit inserts a new deposit record and assigns its row ID.
func (s *Store) CreateDeposit(ctx context.Context, dep *deposit.Deposit) error {
	if dep == nil {
		return errors.New("deposit is nil")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	dep.CreatedAt = now
	dep.UpdatedAt = now

	licenseJSON, errLogJSON, err := marshalDepositJSON(dep)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO deposits (
			deposit_uuid, journal_uuid, container_id, action, volume, issue,
			pub_date, file_type, source_url, size, checksum_type, checksum_value, license_json,
			state, error_log_json, processing_log, attempts, failed_state,
			package_size, package_checksum_type, package_checksum_value,
			pln_state, deposit_date, deposit_receipt, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dep.UUID,
		dep.JournalUUID,
		nullableContainer(dep.ContainerID),
		nullableString(dep.Action),
		nullableString(dep.Volume),
		nullableString(dep.Issue),
		nullableDate(dep.PubDate),
		nullableString(dep.FileType),
		nullableString(dep.SourceURL),
		dep.Size,
		nullableString(dep.ChecksumType),
		nullableString(dep.ChecksumValue),
		licenseJSON,
		string(dep.State),
		errLogJSON,
		nullableString(dep.ProcessingLog),
		dep.Attempts,
		nullableString(string(dep.FailedState)),
		dep.PackageSize,
		nullableString(dep.PackageChecksumType),
		nullableString(dep.PackageChecksumValue),
		nullableString(dep.PLNState),
		nullableTime(dep.DepositDate),
		nullableString(dep.DepositReceipt),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	dep.ID = id
	return nil
}

// UpdateDeposit persists changes to an existing deposit in its own
// transaction. Sweeps use a BatchWriter instead.
func (s *Store) UpdateDeposit(ctx context.Context, dep *deposit.Deposit) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return updateDeposit(ctx, s.db, dep)
	})
}

func updateDeposit(ctx context.Context, ex execer, dep *deposit.Deposit) error {
	if dep == nil {
		return errors.New("deposit is nil")
	}
	dep.UpdatedAt = time.Now().UTC()

	licenseJSON, errLogJSON, err := marshalDepositJSON(dep)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(
		ctx,
		`UPDATE deposits SET
			journal_uuid = ?, container_id = ?, action = ?, volume = ?, issue = ?,
			pub_date = ?, file_type = ?, source_url = ?, size = ?,
			checksum_type = ?, checksum_value = ?, license_json = ?,
			state = ?, error_log_json = ?, processing_log = ?, attempts = ?, failed_state = ?,
			package_size = ?, package_checksum_type = ?, package_checksum_value = ?,
			pln_state = ?, deposit_date = ?, deposit_receipt = ?, updated_at = ?
		 WHERE id = ?`,
		dep.JournalUUID,
		nullableContainer(dep.ContainerID),
		nullableString(dep.Action),
		nullableString(dep.Volume),
		nullableString(dep.Issue),
		nullableDate(dep.PubDate),
		nullableString(dep.FileType),
		nullableString(dep.SourceURL),
		dep.Size,
		nullableString(dep.ChecksumType),
		nullableString(dep.ChecksumValue),
		licenseJSON,
		string(dep.State),
		errLogJSON,
		nullableString(dep.ProcessingLog),
		dep.Attempts,
		nullableString(string(dep.FailedState)),
		dep.PackageSize,
		nullableString(dep.PackageChecksumType),
		nullableString(dep.PackageChecksumValue),
		nullableString(dep.PLNState),
		nullableTime(dep.DepositDate),
		nullableString(dep.DepositReceipt),
		dep.UpdatedAt.Format(time.RFC3339Nano),
		dep.ID,
	)
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	return nil
}

// DepositByUUID fetches a deposit by identifier, case-insensitively.
// It returns nil when no deposit matches.
func (s *Store) DepositByUUID(ctx context.Context, depositUUID string) (*deposit.Deposit, error) {
	ctx = ensureContext(ctx)
	normalized := strings.ToUpper(strings.TrimSpace(depositUUID))
	row := s.db.QueryRowContext(ctx, `SELECT `+depositColumns+` FROM deposits WHERE deposit_uuid = ?`, normalized)
	dep, err := scanDeposit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deposit: %w", err)
	}
	return dep, nil
}

// DepositsByState returns deposits in a state ordered by creation time.
// A limit of zero means no limit.
func (s *Store) DepositsByState(ctx context.Context, state deposit.State, limit int) ([]*deposit.Deposit, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE state = ? ORDER BY created_at`
	args := []any{string(state)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryDeposits(ctx, query, args...)
}

// DepositsByStateAndJournal returns a journal's deposits in a state.
func (s *Store) DepositsByStateAndJournal(ctx context.Context, state deposit.State, journalUUID string) ([]*deposit.Deposit, error) {
	ctx = ensureContext(ctx)
	return s.queryDeposits(
		ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE state = ? AND journal_uuid = ? ORDER BY created_at`,
		string(state),
		strings.ToUpper(strings.TrimSpace(journalUUID)),
	)
}

// ListDeposits returns deposits filtered by state set (or all deposits
// when no state is provided).
func (s *Store) ListDeposits(ctx context.Context, states ...deposit.State) ([]*deposit.Deposit, error) {
	ctx = ensureContext(ctx)
	baseQuery := `SELECT ` + depositColumns + ` FROM deposits`
	orderClause := ` ORDER BY created_at`
	if len(states) == 0 {
		return s.queryDeposits(ctx, baseQuery+orderClause)
	}
	placeholders := makePlaceholders(len(states))
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = string(state)
	}
	return s.queryDeposits(ctx, baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
}

// DepositStats returns a count of deposits grouped by state.
func (s *Store) DepositStats(ctx context.Context) (map[deposit.State]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM deposits GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("deposit stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[deposit.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[deposit.State(state)] = count
	}
	return stats, rows.Err()
}

func (s *Store) queryDeposits(ctx context.Context, query string, args ...any) ([]*deposit.Deposit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*deposit.Deposit
	for rows.Next() {
		dep, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, dep)
	}
	return deposits, rows.Err()
}

func marshalDepositJSON(dep *deposit.Deposit) (licenseJSON, errLogJSON any, err error) {
	licenseJSON = nil
	if len(dep.License) > 0 {
		raw, marshalErr := json.Marshal(dep.License)
		if marshalErr != nil {
			return nil, nil, fmt.Errorf("marshal license: %w", marshalErr)
		}
		licenseJSON = string(raw)
	}
	errLogJSON = nil
	if len(dep.ErrorLog) > 0 {
		raw, marshalErr := json.Marshal(dep.ErrorLog)
		if marshalErr != nil {
			return nil, nil, fmt.Errorf("marshal error log: %w", marshalErr)
		}
		errLogJSON = string(raw)
	}
	return licenseJSON, errLogJSON, nil
}

func scanDeposit(scanner interface{ Scan(dest ...any) error }) (*deposit.Deposit, error) {
	var (
		id            int64
		depositUUID   string
		journalUUID   string
		containerID   sql.NullInt64
		action        sql.NullString
		volume        sql.NullString
		issue         sql.NullString
		pubDateRaw    sql.NullString
		fileType      sql.NullString
		sourceURL     sql.NullString
		size          int64
		checksumType  sql.NullString
		checksumValue sql.NullString
		licenseRaw    sql.NullString
		stateStr      string
		errLogRaw     sql.NullString
		processingLog sql.NullString
		attempts      int
		failedState   sql.NullString
		packageSize   int64
		pkgCkTypeRaw  sql.NullString
		pkgCkValueRaw sql.NullString
		plnState      sql.NullString
		depositDate   sql.NullString
		receipt       sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id, &depositUUID, &journalUUID, &containerID, &action, &volume, &issue,
		&pubDateRaw, &fileType, &sourceURL, &size, &checksumType, &checksumValue, &licenseRaw,
		&stateStr, &errLogRaw, &processingLog, &attempts, &failedState,
		&packageSize, &pkgCkTypeRaw, &pkgCkValueRaw,
		&plnState, &depositDate, &receipt, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	dep := &deposit.Deposit{
		ID:                   id,
		UUID:                 depositUUID,
		JournalUUID:          journalUUID,
		ContainerID:          containerID.Int64,
		Action:               action.String,
		Volume:               volume.String,
		Issue:                issue.String,
		FileType:             fileType.String,
		SourceURL:            sourceURL.String,
		Size:                 size,
		ChecksumType:         checksumType.String,
		ChecksumValue:        checksumValue.String,
		State:                deposit.State(stateStr),
		ProcessingLog:        processingLog.String,
		Attempts:             attempts,
		FailedState:          deposit.State(failedState.String),
		PackageSize:          packageSize,
		PackageChecksumType:  pkgCkTypeRaw.String,
		PackageChecksumValue: pkgCkValueRaw.String,
		PLNState:             plnState.String,
		DepositReceipt:       receipt.String,
		License:              map[string]string{},
	}

	if licenseRaw.Valid && licenseRaw.String != "" {
		if err := json.Unmarshal([]byte(licenseRaw.String), &dep.License); err != nil {
			return nil, fmt.Errorf("unmarshal license: %w", err)
		}
	}
	if errLogRaw.Valid && errLogRaw.String != "" {
		if err := json.Unmarshal([]byte(errLogRaw.String), &dep.ErrorLog); err != nil {
			return nil, fmt.Errorf("unmarshal error log: %w", err)
		}
	}
	if pubDate, err := parseTimeString(pubDateRaw.String); err == nil {
		dep.PubDate = pubDate
	}
	if depositDate.Valid {
		if when, err := parseTimeString(depositDate.String); err == nil {
			dep.DepositDate = &when
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		dep.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		dep.UpdatedAt = updated
	}
	return dep, nil
}

func nullableContainer(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func nullableDate(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
