package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/overdrive/internal/track"
)

// RoadmapRecord is the stored summary of a roadmap. Geometry is never
// stored; LoadRoadmap rebuilds it from the recorded sections.
type RoadmapRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Vehicle    string    `json:"vehicle"`
	Complete   bool      `json:"complete"`
	PieceCount int       `json:"piece_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// SaveRoadmap stores the sections of rm in the order they were added. An
// empty name is replaced with one derived from the new id.
func (db *DB) SaveRoadmap(ctx context.Context, name, vehicle string, rm *track.Roadmap) (RoadmapRecord, error) {
	id := uuid.New()
	if name == "" {
		name = "roadmap-" + id.String()[:8]
	}
	rec := RoadmapRecord{
		ID:         id.String(),
		Name:       name,
		Vehicle:    vehicle,
		Complete:   rm.IsComplete(),
		PieceCount: rm.Len(),
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return RoadmapRecord{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO roadmaps (id, name, vehicle, complete, piece_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Vehicle, rec.Complete, rec.PieceCount, rec.CreatedAt.UnixMilli(),
	); err != nil {
		return RoadmapRecord{}, fmt.Errorf("insert roadmap: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO roadmap_sections (roadmap_id, seq, piece_id, location_id, reversed) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return RoadmapRecord{}, err
	}
	defer stmt.Close()
	for seq, s := range rm.Steps() {
		if _, err := stmt.ExecContext(ctx, rec.ID, seq, s.PieceID, s.LocationID, s.Reverse); err != nil {
			return RoadmapRecord{}, fmt.Errorf("insert section %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RoadmapRecord{}, err
	}
	return rec, nil
}

func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (RoadmapRecord, error) {
	var (
		rec     RoadmapRecord
		created int64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Vehicle, &rec.Complete, &rec.PieceCount, &created); err != nil {
		return RoadmapRecord{}, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

// GetRoadmap returns the stored summary for id.
func (db *DB) GetRoadmap(ctx context.Context, id string) (RoadmapRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return RoadmapRecord{}, err
	}
	rec, err := scanRecord(db.QueryRowContext(ctx,
		`SELECT id, name, vehicle, complete, piece_count, created_at FROM roadmaps WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RoadmapRecord{}, ErrNotFound
	}
	return rec, err
}

// LoadRoadmap returns the stored summary for id and the roadmap rebuilt by
// replaying its sections.
func (db *DB) LoadRoadmap(ctx context.Context, id string) (RoadmapRecord, *track.Roadmap, error) {
	rec, err := db.GetRoadmap(ctx, id)
	if err != nil {
		return RoadmapRecord{}, nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT piece_id, location_id, reversed FROM roadmap_sections WHERE roadmap_id = ? ORDER BY seq`, rec.ID)
	if err != nil {
		return RoadmapRecord{}, nil, err
	}
	defer rows.Close()

	var steps []track.Step
	for rows.Next() {
		var s track.Step
		if err := rows.Scan(&s.PieceID, &s.LocationID, &s.Reverse); err != nil {
			return RoadmapRecord{}, nil, err
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return RoadmapRecord{}, nil, err
	}

	rm := track.NewRoadmap()
	if err := rm.Replay(steps); err != nil {
		return RoadmapRecord{}, nil, fmt.Errorf("replay roadmap %s: %w", rec.ID, err)
	}
	return rec, rm, nil
}

// ListRoadmaps returns all stored summaries, newest first.
func (db *DB) ListRoadmaps(ctx context.Context) ([]RoadmapRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, vehicle, complete, piece_count, created_at FROM roadmaps ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []RoadmapRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteRoadmap removes the roadmap and its sections.
func (db *DB) DeleteRoadmap(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roadmap_sections WHERE roadmap_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM roadmaps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
