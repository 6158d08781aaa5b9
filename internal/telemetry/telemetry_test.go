package telemetry

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/framectl/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(ts time.Time) *governor.Snapshot {
	return &governor.Snapshot{
		Timestamp:               ts,
		CurrentFPS:              58.2,
		AverageFPS:              59.6,
		QualityLevel:            0.85,
		ParticleCountMultiplier: 0.8,
		ShaderComplexityLevel:   1.0,
		PresetName:              "high",
		PresetIndex:             1,
		Counters:                governor.BottleneckCounters{GPUBound: 4, CPUBound: 1},
		AdaptationEnabled:       true,
	}
}

func TestNoopCollectorWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	collector, err := NewService(cfg)
	require.NoError(t, err)

	assert.NoError(t, collector.Record(context.Background(), testSnapshot(time.Now())))
	assert.NoError(t, collector.Close())
}

func TestServiceRejectsNilSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "telemetry.db")

	collector, err := NewService(cfg)
	require.NoError(t, err)
	defer collector.Close()

	assert.Error(t, collector.Record(context.Background(), nil))
}

func TestRepositoryRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "telemetry.db")
	cfg.BatchSize = 2

	repo, err := NewRepository(cfg)
	require.NoError(t, err)

	base := time.Unix(1700000000, 0)
	require.NoError(t, repo.Record(testSnapshot(base)))
	require.NoError(t, repo.Record(testSnapshot(base.Add(time.Second))))

	// Close flushes anything still buffered and checkpoints the WAL
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count))
	assert.Equal(t, 2, count)

	var presetName string
	var avgFPS float64
	var recovering int
	require.NoError(t, db.QueryRow(
		"SELECT preset_name, average_fps, recovering FROM snapshots WHERE timestamp = ?",
		base.Unix(),
	).Scan(&presetName, &avgFPS, &recovering))
	assert.Equal(t, "high", presetName)
	assert.InDelta(t, 59.6, avgFPS, 0.001)
	assert.Equal(t, 0, recovering)
}

func TestRepositoryFinalFlushOnClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "telemetry.db")
	cfg.BatchSize = 64

	repo, err := NewRepository(cfg)
	require.NoError(t, err)

	require.NoError(t, repo.Record(testSnapshot(time.Unix(1700000000, 0))))
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count))
	assert.Equal(t, 1, count)
}
