package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/laptime/internal/testutil"
	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/predictor"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return logger
}

func testBundle() *predictor.Bundle {
	return &predictor.Bundle{
		Version:   predictor.BundleVersion,
		ID:        "2f1c1b2e-7c1e-4a55-9c55-0d3c4a1f9b10",
		CreatedAt: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC),
		Config:    predictor.DefaultConfig(),
		Features:  features.Features,
		Metrics: predictor.Metrics{
			TrainMAE:    0.412,
			TestMAE:     0.587,
			TrainRows:   1200,
			TestRows:    300,
			TrainEvents: []string{"Bahrain Grand Prix", "British Grand Prix"},
			TestEvents:  []string{"Monaco Grand Prix"},
		},
		Importances: []predictor.Importance{{Feature: "TyreLife", Score: 42}},
		Categories:  features.Categories{"Team": {"Ferrari"}, "Compound": {"SOFT"}},
		Imputer: imputer.Table{
			Global: map[string]float64{"LapTime": 90.1},
			Levels: map[string]map[string]map[string]float64{},
		},
		Regressor: predictor.RegressorState{Kind: "gbdt", State: []byte(`{"trees":[]}`)},
	}
}

// storeCases runs a test against every backend
func storeCases(t *testing.T, test func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		test(t, NewFileStore(testLogger(), t.TempDir()))
	})

	t.Run("redis", func(t *testing.T) {
		_, client := testutil.NewMiniredisClient(t)
		test(t, NewRedisStore(testLogger(), client, "laptime:model:"))
	})
}

func TestStore_RoundTrip(t *testing.T) {
	storeCases(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		want := testBundle()

		require.NoError(t, s.Save(ctx, "f1_model.json", want))

		got, err := s.Load(ctx, "f1_model.json")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestStore_Overwrite(t *testing.T) {
	storeCases(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first := testBundle()
		require.NoError(t, s.Save(ctx, "latest", first))

		second := testBundle()
		second.ID = "second"
		require.NoError(t, s.Save(ctx, "latest", second))

		got, err := s.Load(ctx, "latest")
		require.NoError(t, err)
		assert.Equal(t, "second", got.ID)
	})
}

func TestStore_NotFound(t *testing.T) {
	storeCases(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Load(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	storeCases(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "doomed", testBundle()))
		require.NoError(t, s.Delete(ctx, "doomed"))

		_, err := s.Load(ctx, "doomed")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_InvalidKey(t *testing.T) {
	storeCases(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.ErrorIs(t, s.Save(ctx, " ", testBundle()), ErrInvalidKey)

		_, err := s.Load(ctx, "")
		require.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestFileStore_CreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(testLogger(), dir)

	require.NoError(t, s.Save(context.Background(), filepath.Join("models", "2024", "bundle.json"), testBundle()))

	info, err := os.Stat(filepath.Join(dir, "models", "2024", "bundle.json"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	entries, err := os.ReadDir(filepath.Join(dir, "models", "2024"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o600))

	_, err := NewFileStore(testLogger(), dir).Load(context.Background(), "bad.json")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	s := NewRedisStore(testLogger(), client, "laptime:model:")

	require.NoError(t, s.Save(context.Background(), "latest", testBundle()))

	assert.True(t, mr.Exists("laptime:model:latest"))
	assert.Equal(t, time.Duration(0), mr.TTL("laptime:model:latest"))
}

func TestNew(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)

	s, err := New(testLogger(), Config{Backend: BackendFile, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = New(testLogger(), Config{Backend: BackendRedis, Prefix: "x:"}, client)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	_, err = New(testLogger(), Config{Backend: BackendRedis}, nil)
	require.ErrorIs(t, err, ErrRedisClientRequired)

	_, err = New(testLogger(), Config{Backend: "s3"}, nil)
	require.ErrorIs(t, err, ErrUnknownBackend)
}
