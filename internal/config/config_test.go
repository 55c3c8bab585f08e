package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Defaults()

	assert.Equal(t, "BANE", s.Tools.Background)
	assert.Equal(t, "aegean", s.Tools.Finder)
	assert.Equal(t, "stilts", s.Tools.Table)
	assert.Equal(t, "localhost:7233", s.Temporal.HostPort)
	assert.Equal(t, "skywatch-pipeline", s.Temporal.TaskQueue)
	assert.True(t, s.Warp)
	assert.True(t, s.GroupPlotsByEpoch)
}

func TestLoad(t *testing.T) {
	t.Run("no config file keeps defaults", func(t *testing.T) {
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Defaults(), s)
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
image_list: epochs.txt
output_dir: /data/run7
warp: false
group_plots_by_epoch: false
tools:
  finder: /opt/aegean/bin/aegean
temporal:
  task_queue: run7-queue
`), 0o644))

		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "epochs.txt", s.ImageList)
		assert.Equal(t, "/data/run7", s.OutputDir)
		assert.False(t, s.Warp)
		assert.False(t, s.GroupPlotsByEpoch)
		assert.Equal(t, "/opt/aegean/bin/aegean", s.Tools.Finder)
		assert.Equal(t, "run7-queue", s.Temporal.TaskQueue)
		// Untouched settings keep their defaults.
		assert.Equal(t, "BANE", s.Tools.Background)
	})

	t.Run("environment overrides without a file", func(t *testing.T) {
		t.Setenv("SKYWATCH_OUTPUT_DIR", "/env/results")
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "/env/results", s.OutputDir)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Settings {
		s := Defaults()
		s.ImageList = "epochs.txt"
		s.RefCat.Path = "ref.fits"
		return s
	}

	t.Run("complete settings pass", func(t *testing.T) {
		s := valid()
		assert.NoError(t, s.Validate())
	})

	t.Run("image list required", func(t *testing.T) {
		s := valid()
		s.ImageList = ""
		assert.Error(t, s.Validate())
	})

	t.Run("warp requires reference catalogue", func(t *testing.T) {
		s := valid()
		s.RefCat.Path = ""
		assert.Error(t, s.Validate())

		s.Warp = false
		assert.NoError(t, s.Validate())
	})
}

func TestHelper(t *testing.T) {
	tools := ToolSettings{HelperDir: "/opt/skywatch/helpers"}

	assert.Equal(t, "/opt/skywatch/helpers/calc_var.py", tools.Helper("calc_var.py"))
	assert.Equal(t, "/abs/other.py", tools.Helper("/abs/other.py"))
	assert.Equal(t, "", tools.Helper(""))

	bare := ToolSettings{}
	assert.Equal(t, "calc_var.py", bare.Helper("calc_var.py"))
}
