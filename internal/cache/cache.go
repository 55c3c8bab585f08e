// Package cache makes the pipeline's skip-or-recompute decisions explicit.
// The original workflow skipped a stage whenever its output file happened to
// exist; here a stage is skipped only when a marker keyed by the stage name
// and its exact inputs (paths, flags, tool arguments) exists AND every
// declared output is still present. Changing any input produces a new key,
// so stale outputs are recomputed instead of trusted.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// markerDirName is where markers live under the run's output directory.
const markerDirName = ".skywatch-cache"

// Store records completed stage invocations as marker files under a run's
// output directory. It is safe for concurrent use by parallel stage
// instances: keys never collide across distinct inputs, and the same
// (stage, inputs) pair writing the same marker twice is harmless.
type Store struct {
	dir string
}

// New creates a store rooted at the given output directory.
func New(outputDir string) *Store {
	return &Store{dir: filepath.Join(outputDir, markerDirName)}
}

// Key derives the dependency-addressed cache key for one stage invocation.
// Every part that influences the stage's output belongs in parts: input file
// paths, tool arguments, thresholds. Two invocations share a key iff they
// would produce the same outputs.
func (s *Store) Key(stage string, parts ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00", stage)
	for _, p := range parts {
		fmt.Fprintf(h, "%s\x00", p)
	}
	return stage + "-" + hex.EncodeToString(h.Sum(nil))[:24]
}

// Fresh reports whether the invocation behind key can be skipped: its
// marker exists and every declared output file is still on disk. A missing
// output invalidates the skip even when the marker survives, covering
// manual cleanup of intermediates.
func (s *Store) Fresh(key string, outputs ...string) bool {
	if _, err := os.Stat(s.markerPath(key)); err != nil {
		return false
	}
	for _, out := range outputs {
		info, err := os.Stat(out)
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// Commit records that the invocation behind key completed and produced its
// outputs. Call only after the outputs have been verified to exist.
func (s *Store) Commit(key string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	if err := os.WriteFile(s.markerPath(key), nil, 0o644); err != nil {
		return fmt.Errorf("cache marker: %w", err)
	}
	return nil
}

// Invalidate drops the marker for key, forcing recomputation on the next
// run. Missing markers are not an error.
func (s *Store) Invalidate(key string) error {
	err := os.Remove(s.markerPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (s *Store) markerPath(key string) string {
	return filepath.Join(s.dir, key)
}
