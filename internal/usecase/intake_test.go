package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendForge/internal/domain/models"
	"TrendForge/internal/repository"
	applogger "TrendForge/pkg/logger"
)

func newIntakeFixture(t *testing.T) (*SignalIntake, *repository.MemorySourceStore, *repository.MemorySignalStore) {
	t.Helper()
	sources := repository.NewMemorySourceStore()
	signals := repository.NewMemorySignalStore()
	intake := NewSignalIntake(sources, signals, repository.NewMemoryAuditStore(),
		nil, nopMetrics{}, applogger.Nop(),
		[]string{"MEME-PEPE", "TREND-SKIBIDI"})
	return intake, sources, signals
}

func TestIntake_UnknownSymbolRejected(t *testing.T) {
	intake, _, _ := newIntakeFixture(t)

	_, err := intake.Ingest(context.Background(), "src-alpha", "MEME-UNLISTED", time.Now(), models.RawMetrics{})
	assert.ErrorIs(t, err, models.ErrInvalidSymbol)
}

func TestIntake_AutoRegistersNewSource(t *testing.T) {
	intake, sources, signals := newIntakeFixture(t)
	ctx := context.Background()

	sig, err := intake.Ingest(ctx, "src-new", "MEME-PEPE", time.Now(), models.RawMetrics{VPMX: 12})
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, sig.Status)
	assert.NotEmpty(t, sig.ID)

	src, err := sources.Get(ctx, "src-new")
	require.NoError(t, err)
	assert.Equal(t, models.HealthDegraded, src.Health)
	assert.Equal(t, models.ModeSimulated, src.Mode)

	stored, err := signals.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, "src-new", stored.SourceKey)
}

func TestIntake_OfflineSourceRejected(t *testing.T) {
	intake, sources, _ := newIntakeFixture(t)
	ctx := context.Background()
	require.NoError(t, sources.Upsert(ctx, &models.OracleSource{
		SourceKey: "src-down",
		Health:    models.HealthOffline,
		Mode:      models.ModeLive,
	}))

	_, err := intake.Ingest(ctx, "src-down", "MEME-PEPE", time.Now(), models.RawMetrics{})
	assert.ErrorIs(t, err, models.ErrInvalidSource)
}

func TestIntake_OfflineSeedSourceAccepted(t *testing.T) {
	intake, sources, _ := newIntakeFixture(t)
	ctx := context.Background()
	require.NoError(t, sources.Upsert(ctx, &models.OracleSource{
		SourceKey: "src-backfill",
		Health:    models.HealthOffline,
		Mode:      models.ModeSeed,
	}))

	sig, err := intake.Ingest(ctx, "src-backfill", "MEME-PEPE", time.Now(), models.RawMetrics{})
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, sig.Status)
}

func TestIntake_MaintenanceBlocksIngest(t *testing.T) {
	intake, _, _ := newIntakeFixture(t)
	ctx := context.Background()

	err := intake.SetMaintenance(ctx, "bob", "operator", true, "")
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
	assert.False(t, intake.MaintenanceOn())

	require.NoError(t, intake.SetMaintenance(ctx, "alice", "admin", true, "broker upgrade"))
	assert.True(t, intake.MaintenanceOn())

	_, err = intake.Ingest(ctx, "src-alpha", "MEME-PEPE", time.Now(), models.RawMetrics{})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	require.NoError(t, intake.SetMaintenance(ctx, "alice", "admin", false, "upgrade done"))

	sig, err := intake.Ingest(ctx, "src-alpha", "MEME-PEPE", time.Now(), models.RawMetrics{})
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, sig.Status)
}

func TestIntake_ZeroDetectedAtDefaultsToNow(t *testing.T) {
	intake, _, _ := newIntakeFixture(t)

	before := time.Now().UTC()
	sig, err := intake.Ingest(context.Background(), "src-alpha", "TREND-SKIBIDI", time.Time{}, models.RawMetrics{})
	require.NoError(t, err)
	assert.False(t, sig.DetectedAt.Before(before))
}
