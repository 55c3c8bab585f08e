package transient

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

func TestFilterCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("filtered catalogue replaces the input", func(t *testing.T) {
		dir := t.TempDir()
		cat := filepath.Join(dir, "epoch1_resid_comp.fits")
		img := filepath.Join(dir, "epoch1_warped.fits")
		out := filepath.Join(dir, "epoch1_resid_filtered.fits")
		touch(t, cat)
		touch(t, img)

		runner := &fakeRunner{onRun: func(toolexec.Invocation) error {
			touch(t, out)
			return nil
		}}
		a := newTestActivities(runner)

		got, err := a.FilterCandidates(ctx, domain.FilterCandidatesInput{
			Catalogue:    domain.CatalogueRef{Path: cat, Epoch: 1},
			Image:        domain.ImageRef{Path: img, Epoch: 1},
			OutCatalogue: out,
		})
		require.NoError(t, err)
		assert.Equal(t, out, got.Catalogue.Path)
		assert.Equal(t, 1, got.Catalogue.Epoch)

		require.Len(t, runner.invocations, 1)
		assert.Equal(t, []string{
			"--incat", cat,
			"--image", img,
			"--outcat", out,
		}, runner.invocations[0].Args)
	})

	t.Run("empty filter result keeps unfiltered catalogue", func(t *testing.T) {
		dir := t.TempDir()
		cat := filepath.Join(dir, "epoch1_resid_comp.fits")
		img := filepath.Join(dir, "epoch1_warped.fits")
		touch(t, cat)
		touch(t, img)

		a := newTestActivities(&fakeRunner{})
		got, err := a.FilterCandidates(ctx, domain.FilterCandidatesInput{
			Catalogue:    domain.CatalogueRef{Path: cat, Epoch: 1},
			Image:        domain.ImageRef{Path: img, Epoch: 1},
			OutCatalogue: filepath.Join(dir, "epoch1_resid_filtered.fits"),
		})
		require.NoError(t, err)
		assert.Equal(t, cat, got.Catalogue.Path,
			"rejecting everything must not lose the raw detections")
	})
}

func TestCompileCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("nil and missing epochs are skipped", func(t *testing.T) {
		dir := t.TempDir()
		e1 := filepath.Join(dir, "epoch1_resid_filtered.fits")
		out := filepath.Join(dir, "transients.fits")
		touch(t, e1)

		runner := &fakeRunner{onRun: func(toolexec.Invocation) error {
			touch(t, out)
			return nil
		}}
		a := newTestActivities(runner)

		got, err := a.CompileCandidates(ctx, domain.CompileCandidatesInput{
			Epochs: []*domain.CatalogueRef{
				nil,
				{Path: e1, Epoch: 1},
				{Path: filepath.Join(dir, "vanished.fits"), Epoch: 2},
			},
			OutTable: out,
		})
		require.NoError(t, err)
		require.NotNil(t, got.Candidates)
		assert.Equal(t, out, got.Candidates.Path)

		require.Len(t, runner.invocations, 1)
		assert.Equal(t, []string{
			"tcat",
			"in=" + e1,
			"ofmt=fits", "out=" + out,
		}, runner.invocations[0].Args)
	})

	t.Run("all epochs empty yields nil candidates without running", func(t *testing.T) {
		runner := &fakeRunner{}
		a := newTestActivities(runner)

		got, err := a.CompileCandidates(ctx, domain.CompileCandidatesInput{
			Epochs:   []*domain.CatalogueRef{nil, nil, nil},
			OutTable: filepath.Join(t.TempDir(), "transients.fits"),
		})
		require.NoError(t, err)
		assert.Nil(t, got.Candidates)
		assert.Empty(t, runner.invocations)
	})

	t.Run("concatenates several epochs", func(t *testing.T) {
		dir := t.TempDir()
		e0 := filepath.Join(dir, "epoch0_resid_filtered.fits")
		e1 := filepath.Join(dir, "epoch1_resid_filtered.fits")
		out := filepath.Join(dir, "transients.fits")
		touch(t, e0)
		touch(t, e1)

		runner := &fakeRunner{onRun: func(toolexec.Invocation) error {
			touch(t, out)
			return nil
		}}
		a := newTestActivities(runner)

		_, err := a.CompileCandidates(ctx, domain.CompileCandidatesInput{
			Epochs: []*domain.CatalogueRef{
				{Path: e0, Epoch: 0},
				{Path: e1, Epoch: 1},
			},
			OutTable: out,
		})
		require.NoError(t, err)
		require.Len(t, runner.invocations, 1)
		assert.Contains(t, runner.invocations[0].Args, "in="+e0)
		assert.Contains(t, runner.invocations[0].Args, "in="+e1)
	})
}
