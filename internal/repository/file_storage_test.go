package repository

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RoGogDBD/data-logger/internal/datalog"
	models "github.com/RoGogDBD/data-logger/internal/model"
)

func sampleSnapshot() datalog.Snapshot {
	return datalog.Snapshot{
		Config: models.SessionConfig{
			ID:              "session-1",
			Variables:       []string{"x", "y"},
			Units:           map[string]string{"x": "V", "y": "mA"},
			TriggerType:     models.TriggerVariable,
			TriggerVariable: "x",
			ValuingMode:     models.ValuingAverage,
		},
		Keys: []string{"x", "y"},
		Data: map[string][]float64{
			"x": {10, 20, 30},
			"y": {2, math.NaN(), 5},
		},
		Started: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func requireSeqEqual(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			require.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		require.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}
}

// TestSaveLoadRoundTrip_TableDriven проверяет для каждого формата, что
// загруженные последовательности и единицы совпадают с исходными.
func TestSaveLoadRoundTrip_TableDriven(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		checksMeta bool // текстовый формат не сохраняет метаданные
	}{
		{"json", FormatJSON, true},
		{"msgpack", FormatMsgp, true},
		{"text", FormatText, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			snap := sampleSnapshot()
			header := "experiment 42\nsecond line"

			name, err := SaveSnapshot(dir, snap, header, "_test", tt.format)
			require.NoError(t, err)
			require.True(t, strings.HasSuffix(name, "_test."+tt.format))

			loaded, err := LoadSavedFile(filepath.Join(dir, name))
			require.NoError(t, err)

			requireSeqEqual(t, snap.Data["x"], loaded.Data["x"])
			requireSeqEqual(t, snap.Data["y"], loaded.Data["y"])
			require.Equal(t, []string{"x", "y"}, loaded.Keys)

			if tt.checksMeta {
				require.Equal(t, header, loaded.Header)
				require.Equal(t, snap.Config.Units, loaded.Meta.Units)
				require.Equal(t, snap.Config.TriggerVariable, loaded.Meta.Configuration.TriggerVariable)
				require.Equal(t, "2025-03-01", loaded.Meta.Today)
			}
		})
	}
}

// TestLoadSavedFile_SuffixGuessing: путь без расширения дополняется
// известными расширениями.
func TestLoadSavedFile_SuffixGuessing(t *testing.T) {
	dir := t.TempDir()
	name, err := SaveSnapshot(dir, sampleSnapshot(), "h", "", FormatJSON)
	require.NoError(t, err)

	base := strings.TrimSuffix(filepath.Join(dir, name), ".json")
	loaded, err := LoadSavedFile(base)
	require.NoError(t, err)
	require.Equal(t, "h", loaded.Header)
}

// TestLoadSavedFile_UnknownSuffix: неизвестное расширение — ошибка.
func TestLoadSavedFile_UnknownSuffix(t *testing.T) {
	_, err := LoadSavedFile("data.xlsx")
	require.Error(t, err)
}

// TestSaveLoadConfig проверяет восстановление конфигурации сессии.
func TestSaveLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configuration.json")
	cfg := sampleSnapshot().Config

	require.NoError(t, SaveConfig(path, cfg))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
