package fluxtable

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
	"github.com/ahrav/skywatch/pkg/events"
)

type fakeRunner struct {
	invocations []toolexec.Invocation
	onRun       func(inv toolexec.Invocation) error
}

func (f *fakeRunner) Run(_ context.Context, inv toolexec.Invocation) error {
	f.invocations = append(f.invocations, inv)
	if f.onRun != nil {
		return f.onRun(inv)
	}
	return nil
}

func (f *fakeRunner) Output(ctx context.Context, inv toolexec.Invocation) ([]byte, error) {
	return nil, f.Run(ctx, inv)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func newTestActivities(runner toolexec.Runner) *Activities {
	base := activity.NewBaseActivities(events.NewNoOpEventSink())
	return NewActivities(base, runner, config.Defaults().Tools)
}

func TestBuildInvocation(t *testing.T) {
	a := newTestActivities(&fakeRunner{})

	in := domain.JoinFluxInput{
		Master: domain.CatalogueRef{Path: "master.fits"},
		Epochs: []domain.CatalogueRef{
			{Path: "e0.fits", Epoch: 0},
			{Path: "e1.fits", Epoch: 1},
			{Path: "e2.fits", Epoch: 2},
		},
		OutTable: "flux_table.fits",
	}

	t.Run("master leads, epochs follow in order", func(t *testing.T) {
		inv := a.buildInvocation(in)
		assert.Equal(t, []string{
			"tjoin", "nin=4",
			"in1=master.fits",
			"in2=e0.fits",
			"in3=e1.fits",
			"in4=e2.fits",
			"ofmt=fits", "out=flux_table.fits",
		}, inv.Args)
		assert.Equal(t, "stilts", inv.Name)
	})

	t.Run("collection order does not matter", func(t *testing.T) {
		shuffled := in
		shuffled.Epochs = []domain.CatalogueRef{
			{Path: "e2.fits", Epoch: 2},
			{Path: "e0.fits", Epoch: 0},
			{Path: "e1.fits", Epoch: 1},
		}
		assert.Equal(t, a.buildInvocation(in).Args, a.buildInvocation(shuffled).Args)
	})

	t.Run("input slice is not mutated", func(t *testing.T) {
		shuffled := in
		shuffled.Epochs = []domain.CatalogueRef{
			{Path: "e2.fits", Epoch: 2},
			{Path: "e0.fits", Epoch: 0},
		}
		a.buildInvocation(shuffled)
		assert.Equal(t, 2, shuffled.Epochs[0].Epoch)
	})
}

func TestJoinFluxTables(t *testing.T) {
	ctx := context.Background()

	t.Run("joins and reports the flux table", func(t *testing.T) {
		dir := t.TempDir()
		master := filepath.Join(dir, "master.fits")
		e0 := filepath.Join(dir, "e0.fits")
		e1 := filepath.Join(dir, "e1.fits")
		out := filepath.Join(dir, "flux_table.fits")
		for _, p := range []string{master, e0, e1} {
			touch(t, p)
		}

		runner := &fakeRunner{onRun: func(toolexec.Invocation) error {
			touch(t, out)
			return nil
		}}
		a := newTestActivities(runner)

		got, err := a.JoinFluxTables(ctx, domain.JoinFluxInput{
			Master: domain.CatalogueRef{Path: master},
			Epochs: []domain.CatalogueRef{
				{Path: e1, Epoch: 1},
				{Path: e0, Epoch: 0},
			},
			OutTable: out,
		})
		require.NoError(t, err)
		assert.Equal(t, out, got.FluxTable.Path)
		require.Len(t, runner.invocations, 1)
		// Epoch 0 joins before epoch 1 regardless of collection order.
		assert.Equal(t, "in2="+e0, runner.invocations[0].Args[2])
		assert.Equal(t, "in3="+e1, runner.invocations[0].Args[3])
	})

	t.Run("missing epoch catalogue fails before the tool runs", func(t *testing.T) {
		dir := t.TempDir()
		master := filepath.Join(dir, "master.fits")
		touch(t, master)

		runner := &fakeRunner{}
		a := newTestActivities(runner)
		_, err := a.JoinFluxTables(ctx, domain.JoinFluxInput{
			Master:   domain.CatalogueRef{Path: master},
			Epochs:   []domain.CatalogueRef{{Path: filepath.Join(dir, "absent.fits")}},
			OutTable: filepath.Join(dir, "flux_table.fits"),
		})
		require.Error(t, err)
		assert.Empty(t, runner.invocations)
	})
}
