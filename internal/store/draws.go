package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raffleworks/topicdraw/internal/draw"
)

// timeFormat is the stored timestamp layout.
const timeFormat = time.RFC3339Nano

// CreateDraw inserts a fresh draw row. The topic must not already have one;
// replacement of an existing running draw goes through UpdateConfig, and a
// concluded draw is superseded with DeleteDraw + CreateDraw by an admin path.
func (s *Store) CreateDraw(ctx context.Context, d *draw.Draw) error {
	winnersJSON, err := marshalWinners(d.Winners)
	if err != nil {
		return fmt.Errorf("create draw: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draws
		(topic_id, initiator_id, title, prize_description, image_ref, draw_at,
		 policy_kind, winner_count, positions, min_participants, backup_strategy,
		 notes, status, winners, cancel_reason, locked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.TopicID,
		d.InitiatorID,
		d.Config.Title,
		d.Config.PrizeDescription,
		d.Config.ImageRef,
		d.Config.DrawAt.UTC().Format(timeFormat),
		string(d.Config.Policy.Kind),
		d.Config.Policy.Count,
		joinPositions(d.Config.Policy.Positions),
		d.Config.MinParticipants,
		string(d.Config.Backup),
		d.Config.Notes,
		string(d.Status),
		winnersJSON,
		d.CancelReason,
		nullableTime(d.LockedAt),
		d.CreatedAt.UTC().Format(timeFormat),
		d.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("create draw for topic %d: %w", d.TopicID, err)
	}
	return nil
}

// GetDraw loads the draw for a topic, or draw.ErrNotFound.
func (s *Store) GetDraw(ctx context.Context, topicID int64) (*draw.Draw, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT topic_id, initiator_id, title, prize_description, image_ref, draw_at,
		       policy_kind, winner_count, positions, min_participants, backup_strategy,
		       notes, status, winners, cancel_reason, locked_at, created_at, updated_at
		FROM draws
		WHERE topic_id = ?
	`, topicID)

	d, err := scanDraw(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %d: %w", topicID, draw.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get draw for topic %d: %w", topicID, err)
	}
	return d, nil
}

// ListRunning returns every draw still in the running state, ordered by
// draw instant. Used on startup to re-arm triggers.
func (s *Store) ListRunning(ctx context.Context) ([]*draw.Draw, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic_id, initiator_id, title, prize_description, image_ref, draw_at,
		       policy_kind, winner_count, positions, min_participants, backup_strategy,
		       notes, status, winners, cancel_reason, locked_at, created_at, updated_at
		FROM draws
		WHERE status = 'running'
		ORDER BY draw_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list running draws: %w", err)
	}
	defer rows.Close()

	var draws []*draw.Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("list running draws: %w", err)
		}
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list running draws: %w", err)
	}
	return draws, nil
}

// UpdateConfig replaces the config snapshot of a running, unlocked draw in
// place. Returns applied=false when the draw is terminal or locked (a stale
// edit); the caller decides how to surface that.
func (s *Store) UpdateConfig(ctx context.Context, topicID int64, cfg draw.Config, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE draws
		SET title = ?, prize_description = ?, image_ref = ?, draw_at = ?,
		    policy_kind = ?, winner_count = ?, positions = ?,
		    min_participants = ?, backup_strategy = ?, notes = ?, updated_at = ?
		WHERE topic_id = ? AND status = 'running' AND locked_at IS NULL
	`,
		cfg.Title,
		cfg.PrizeDescription,
		cfg.ImageRef,
		cfg.DrawAt.UTC().Format(timeFormat),
		string(cfg.Policy.Kind),
		cfg.Policy.Count,
		joinPositions(cfg.Policy.Positions),
		cfg.MinParticipants,
		string(cfg.Backup),
		cfg.Notes,
		now.UTC().Format(timeFormat),
		topicID,
	)
	if err != nil {
		return false, fmt.Errorf("update config for topic %d: %w", topicID, err)
	}
	return applied(res)
}

// FinishDraw commits the Running->Finished transition with the winner list.
//
// The status predicate is the compare-and-set: with two racing executors,
// exactly one sees applied=true and owns the side effects. applied=false is
// the loser's silent no-op, not an error.
func (s *Store) FinishDraw(ctx context.Context, topicID int64, winners []draw.Winner, now time.Time) (bool, error) {
	winnersJSON, err := marshalWinners(winners)
	if err != nil {
		return false, fmt.Errorf("finish draw: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE draws
		SET status = 'finished', winners = ?, updated_at = ?
		WHERE topic_id = ? AND status = 'running'
	`, winnersJSON, now.UTC().Format(timeFormat), topicID)
	if err != nil {
		return false, fmt.Errorf("finish draw for topic %d: %w", topicID, err)
	}
	return applied(res)
}

// CancelDraw commits the Running->Cancelled transition. Same compare-and-set
// contract as FinishDraw.
func (s *Store) CancelDraw(ctx context.Context, topicID int64, reason string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE draws
		SET status = 'cancelled', cancel_reason = ?, updated_at = ?
		WHERE topic_id = ? AND status = 'running'
	`, reason, now.UTC().Format(timeFormat), topicID)
	if err != nil {
		return false, fmt.Errorf("cancel draw for topic %d: %w", topicID, err)
	}
	return applied(res)
}

// LockDraw records the lock instant on a running draw. Locking twice or
// locking a terminal draw is applied=false.
func (s *Store) LockDraw(ctx context.Context, topicID int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE draws
		SET locked_at = ?, updated_at = ?
		WHERE topic_id = ? AND status = 'running' AND locked_at IS NULL
	`, now.UTC().Format(timeFormat), now.UTC().Format(timeFormat), topicID)
	if err != nil {
		return false, fmt.Errorf("lock draw for topic %d: %w", topicID, err)
	}
	return applied(res)
}

// DeleteDraw removes a topic's draw row. Administrative use only; the
// engine itself never deletes.
func (s *Store) DeleteDraw(ctx context.Context, topicID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM draws WHERE topic_id = ?`, topicID); err != nil {
		return fmt.Errorf("delete draw for topic %d: %w", topicID, err)
	}
	return nil
}

func applied(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraw(row rowScanner) (*draw.Draw, error) {
	var (
		d            draw.Draw
		drawAt       string
		policyKind   string
		positionsCSV string
		backup       string
		status       string
		winnersJSON  string
		lockedAt     sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(
		&d.TopicID, &d.InitiatorID,
		&d.Config.Title, &d.Config.PrizeDescription, &d.Config.ImageRef, &drawAt,
		&policyKind, &d.Config.Policy.Count, &positionsCSV,
		&d.Config.MinParticipants, &backup,
		&d.Config.Notes, &status, &winnersJSON, &d.CancelReason, &lockedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Config.Policy.Kind = draw.PolicyKind(policyKind)
	d.Config.Policy.Positions, err = splitPositions(positionsCSV)
	if err != nil {
		return nil, err
	}
	st, ok := draw.ParseState(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	d.Status = st
	bs, ok := draw.ParseBackupStrategy(backup)
	if !ok {
		return nil, fmt.Errorf("unknown backup strategy %q", backup)
	}
	d.Config.Backup = bs

	if d.Config.DrawAt, err = time.Parse(timeFormat, drawAt); err != nil {
		return nil, fmt.Errorf("parse draw_at: %w", err)
	}
	if d.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lockedAt.Valid {
		t, err := time.Parse(timeFormat, lockedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse locked_at: %w", err)
		}
		d.LockedAt = &t
	}

	if err := json.Unmarshal([]byte(winnersJSON), &d.Winners); err != nil {
		return nil, fmt.Errorf("parse winners: %w", err)
	}
	return &d, nil
}

func marshalWinners(winners []draw.Winner) (string, error) {
	if winners == nil {
		winners = []draw.Winner{}
	}
	b, err := json.Marshal(winners)
	if err != nil {
		return "", fmt.Errorf("marshal winners: %w", err)
	}
	return string(b), nil
}

func joinPositions(positions []int) string {
	if len(positions) == 0 {
		return ""
	}
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func splitPositions(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	positions := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse positions %q: %w", s, err)
		}
		positions[i] = n
	}
	return positions, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}
