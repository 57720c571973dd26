package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bindery/internal/deposit"
)

// AssignContainer places a deposit into the open AU container, creating a
// fresh one when none is open or the open one already holds maxSize
// deposits. Containers close permanently once full. The deposit's
// ContainerID is set in memory; the caller persists the deposit itself.
func (s *Store) AssignContainer(ctx context.Context, dep *deposit.Deposit, maxSize int) error {
	if dep == nil {
		return errors.New("deposit is nil")
	}
	if dep.HasContainer() {
		return nil
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	ctx = ensureContext(ctx)

	var (
		containerID int64
		members     int
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT c.id, COUNT(d.id)
		 FROM au_containers c LEFT JOIN deposits d ON d.container_id = c.id
		 WHERE c.open = 1
		 GROUP BY c.id
		 ORDER BY c.id DESC LIMIT 1`,
	).Scan(&containerID, &members)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		containerID = 0
	case err != nil:
		return fmt.Errorf("find open container: %w", err)
	}

	if containerID != 0 && members >= maxSize {
		if _, err := s.execWithRetry(ctx, `UPDATE au_containers SET open = 0 WHERE id = ?`, containerID); err != nil {
			return fmt.Errorf("close container: %w", err)
		}
		containerID = 0
	}

	if containerID == 0 {
		res, err := s.execWithRetry(
			ctx,
			`INSERT INTO au_containers (open, created_at) VALUES (1, ?)`,
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("create container: %w", err)
		}
		containerID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("container id: %w", err)
		}
	}

	dep.ContainerID = containerID
	return nil
}

// ContainerMembers returns the deposit UUIDs bundled into a container.
func (s *Store) ContainerMembers(ctx context.Context, containerID int64) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT deposit_uuid FROM deposits WHERE container_id = ? ORDER BY id`, containerID)
	if err != nil {
		return nil, fmt.Errorf("container members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var depositUUID string
		if err := rows.Scan(&depositUUID); err != nil {
			return nil, err
		}
		members = append(members, depositUUID)
	}
	return members, rows.Err()
}
