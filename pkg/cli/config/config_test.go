package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/cli/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mnemon.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadAppConfiguration(t *testing.T) {
	path := writeConfig(t, `
[compression]
deferred_timeout_sec = 7
sync_timeout_sec = 4

[search]
recency_window_days = 30
candidate_pool = 50
vector_query_timeout_sec = 2

[reaper]
interval_sec = 60
idle_ttl_sec = 3600
`)

	cfg, err := config.LoadAppConfiguration(path)
	gt.NoError(t, err).Required()

	pipeline := cfg.ToPipelineConfig()
	gt.Value(t, pipeline.DeferredTimeout).Equal(7 * time.Second)
	gt.Value(t, pipeline.SyncTimeout).Equal(4 * time.Second)
	gt.Value(t, pipeline.RecencyWindow).Equal(30 * 24 * time.Hour)
	gt.Value(t, pipeline.CandidatePool).Equal(50)
	gt.Value(t, pipeline.VectorQueryTimeout).Equal(2 * time.Second)

	gt.Value(t, cfg.ReaperInterval()).Equal(time.Minute)
	gt.Value(t, cfg.ReaperIdleTTL()).Equal(time.Hour)
}

func TestLoadAppConfigurationEmptySections(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := config.LoadAppConfiguration(path)
	gt.NoError(t, err).Required()

	// Absent values stay zero so the pipeline applies its own defaults
	pipeline := cfg.ToPipelineConfig()
	gt.Value(t, pipeline.DeferredTimeout).Equal(time.Duration(0))
	gt.Value(t, pipeline.CandidatePool).Equal(0)

	// The reaper knobs fall back to built-in values instead
	gt.Value(t, cfg.ReaperInterval()).Equal(5 * time.Minute)
	gt.Value(t, cfg.ReaperIdleTTL()).Equal(2 * time.Hour)
}

func TestLoadAppConfigurationRejectsNegativeValues(t *testing.T) {
	path := writeConfig(t, `
[compression]
sync_timeout_sec = -1
`)

	_, err := config.LoadAppConfiguration(path)
	gt.Error(t, err)
}

func TestLoadAppConfigurationMissingFile(t *testing.T) {
	_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "absent.toml"))
	gt.Error(t, err)
}

func TestLoadAppConfigurationBadTOML(t *testing.T) {
	path := writeConfig(t, "[compression\nnope")

	_, err := config.LoadAppConfiguration(path)
	gt.Error(t, err)
}
