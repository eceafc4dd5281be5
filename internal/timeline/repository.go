package timeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/transitiond/internal/gentime"
)

type Repository interface {
	CreateClip(ctx context.Context, clip *Clip) error
	UpdateClip(ctx context.Context, clip *Clip) error
	DeleteClip(ctx context.Context, id string) error
	ListClips(ctx context.Context) ([]*Clip, error)

	SaveTransition(ctx context.Context, rec *TransitionRecord) error
	DeleteTransition(ctx context.Context, id string) error
	ListTransitions(ctx context.Context) ([]*TransitionRecord, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateClip(ctx context.Context, c *Clip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, name, media_path, track, start_us, crop_start_us, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.MediaPath, c.Track, int64(c.Start), int64(c.CropStart), int64(c.Duration), c.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) UpdateClip(ctx context.Context, c *Clip) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clips SET name = ?, media_path = ?, track = ?, start_us = ?, crop_start_us = ?, duration_us = ?
		WHERE id = ?
	`, c.Name, c.MediaPath, c.Track, int64(c.Start), int64(c.CropStart), int64(c.Duration), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update clip %s: %w", c.ID, ErrClipNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) ListClips(ctx context.Context) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, media_path, track, start_us, crop_start_us, duration_us, created_at
		FROM clips ORDER BY track, start_us, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		var c Clip
		var start, cropStart, duration int64
		var createdAt string

		if err := rows.Scan(&c.ID, &c.Name, &c.MediaPath, &c.Track, &start, &cropStart, &duration, &createdAt); err != nil {
			return nil, err
		}
		c.Start = gentime.Time(start)
		c.CropStart = gentime.Time(cropStart)
		c.Duration = gentime.Time(duration)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		clips = append(clips, &c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) SaveTransition(ctx context.Context, t *TransitionRecord) error {
	params := t.Parameters
	if params == nil {
		params = map[string]string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transitions (id, kind, params_json, single_clip, ref_clip_id, second_clip_id, start_us, duration_us, invert, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			params_json = excluded.params_json,
			start_us = excluded.start_us,
			duration_us = excluded.duration_us,
			invert = excluded.invert
	`, t.ID, t.Kind, string(paramsJSON), boolToInt(t.SingleClip), t.RefClipID, nullString(t.SecondClipID),
		int64(t.Start), int64(t.Duration), boolToInt(t.Invert), t.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) DeleteTransition(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transitions WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) ListTransitions(ctx context.Context) ([]*TransitionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, params_json, single_clip, ref_clip_id, second_clip_id, start_us, duration_us, invert, created_at
		FROM transitions ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*TransitionRecord
	for rows.Next() {
		var t TransitionRecord
		var paramsJSON, createdAt string
		var single, invert int
		var second sql.NullString
		var start, duration int64

		if err := rows.Scan(&t.ID, &t.Kind, &paramsJSON, &single, &t.RefClipID, &second, &start, &duration, &invert, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(paramsJSON), &t.Parameters); err != nil {
			return nil, fmt.Errorf("transition %s: invalid parameters: %w", t.ID, err)
		}
		t.SingleClip = single == 1
		t.SecondClipID = second.String
		t.Start = gentime.Time(start)
		t.Duration = gentime.Time(duration)
		t.Invert = invert == 1
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, &t)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
