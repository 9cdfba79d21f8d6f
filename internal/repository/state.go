package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/status"
)

// StateRepository 拖车状态历史
type StateRepository struct {
	db *DB
}

// NewStateRepository 创建状态仓库
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

// Record 结束当前状态区间并开启新区间
func (r *StateRepository) Record(ctx context.Context, trailerID int64, s status.Status, at time.Time) error {
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE trailer_states SET end_time = $1 WHERE trailer_id = $2 AND end_time IS NULL`,
			at, trailerID,
		); err != nil {
			return fmt.Errorf("close open state: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO trailer_states (trailer_id, status, start_time) VALUES ($1, $2, $3)`,
			trailerID, s.String(), at,
		); err != nil {
			return fmt.Errorf("insert state: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record trailer %d state: %w", trailerID, err)
	}
	return nil
}

// ListByTrailer 获取拖车状态历史（按开始时间倒序）
func (r *StateRepository) ListByTrailer(ctx context.Context, trailerID int64, limit int) ([]*models.TrailerState, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, trailer_id, status, start_time, end_time
		FROM trailer_states
		WHERE trailer_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, trailerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var states []*models.TrailerState
	for rows.Next() {
		s := &models.TrailerState{}
		if err := rows.Scan(&s.ID, &s.TrailerID, &s.Status, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}
	return states, nil
}

// Current 获取所有拖车当前未结束的状态
func (r *StateRepository) Current(ctx context.Context) ([]*models.TrailerState, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, trailer_id, status, start_time, end_time
		FROM trailer_states
		WHERE end_time IS NULL
		ORDER BY trailer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query current states: %w", err)
	}
	defer rows.Close()

	var states []*models.TrailerState
	for rows.Next() {
		s := &models.TrailerState{}
		if err := rows.Scan(&s.ID, &s.TrailerID, &s.Status, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate current states: %w", err)
	}
	return states, nil
}
