package db

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overdrive/internal/testutil"
	"github.com/banshee-data/overdrive/internal/track"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ovalRoadmap(t *testing.T) *track.Roadmap {
	t.Helper()
	rm := track.NewRoadmap()
	require.NoError(t, rm.Replay([]track.Step{
		{PieceID: 33}, {PieceID: 17}, {PieceID: 18}, {PieceID: 36},
		{PieceID: 20}, {PieceID: 23}, {PieceID: 34},
	}))
	require.True(t, rm.IsComplete())
	return rm
}

func TestMigrations(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='roadmaps'`).Scan(&n))
	assert.Zero(t, n)
}

func TestSaveAndLoadRoadmap(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	rm := ovalRoadmap(t)

	rec, err := db.SaveRoadmap(ctx, "oval", "ED:5A:1C:44:03:9B", rm)
	require.NoError(t, err)
	assert.Equal(t, "oval", rec.Name)
	assert.True(t, rec.Complete)
	assert.Equal(t, 7, rec.PieceCount)

	got, loaded, err := db.LoadRoadmap(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.True(t, loaded.IsComplete())
	assert.True(t, loaded.Equal(rm))
	assert.Equal(t, rm.Steps(), loaded.Steps())
	assert.Equal(t, rm.String(), loaded.String())
}

func TestSaveOpenRoadmap(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	rm := track.NewRoadmap()
	require.NoError(t, rm.Add(33, 0, false))
	require.NoError(t, rm.Add(17, 0, true))

	rec, err := db.SaveRoadmap(ctx, "", "", rm)
	require.NoError(t, err)
	assert.Regexp(t, `^roadmap-[0-9a-f]{8}$`, rec.Name)
	assert.False(t, rec.Complete)

	_, loaded, err := db.LoadRoadmap(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, []track.Step{{PieceID: 33}, {PieceID: 17, Reverse: true}}, loaded.Steps())
}

func TestListAndDeleteRoadmaps(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	empty, err := db.ListRoadmaps(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	a, err := db.SaveRoadmap(ctx, "a", "", ovalRoadmap(t))
	require.NoError(t, err)
	b, err := db.SaveRoadmap(ctx, "b", "", track.NewRoadmap())
	require.NoError(t, err)

	list, err := db.ListRoadmaps(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	require.NoError(t, db.DeleteRoadmap(ctx, a.ID))
	_, _, err = db.LoadRoadmap(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var sections int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM roadmap_sections WHERE roadmap_id = ?`, a.ID).Scan(&sections))
	assert.Zero(t, sections)

	assert.ErrorIs(t, db.DeleteRoadmap(ctx, a.ID), ErrNotFound)
	assert.ErrorIs(t, db.DeleteRoadmap(ctx, "nope"), ErrInvalidID)
	_, err = db.GetRoadmap(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidID)

	list, err = db.ListRoadmaps(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestLoadRoadmapCorruptSections(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	rec, err := db.SaveRoadmap(ctx, "bad", "", track.NewRoadmap())
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO roadmap_sections (roadmap_id, seq, piece_id, location_id, reversed) VALUES (?, 0, 99, 0, 0)`, rec.ID)
	require.NoError(t, err)

	_, _, err = db.LoadRoadmap(ctx, rec.ID)
	assert.ErrorIs(t, err, track.ErrUnknownPiece)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	_, err := db.SaveRoadmap(context.Background(), "oval", "", ovalRoadmap(t))
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	rec := testutil.Serve(mux, testutil.NewRequest(http.MethodGet, "/debug/backup", ""))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))

	rec = testutil.Serve(mux, testutil.NewRequest(http.MethodGet, "/debug/", ""))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "SQL live debugging")
}
