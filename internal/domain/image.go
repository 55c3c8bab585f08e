// Package domain defines the entities and operation contracts that flow
// through the transient-detection pipeline. Entities are references to
// files produced and consumed by external astronomy tools; the pipeline
// never holds pixel or table data in workflow state, only paths plus the
// metadata needed to wire one stage's outputs into the next stage's inputs.
package domain

import (
	"path/filepath"
	"strings"
)

// ImageRef identifies one FITS image by path. Epoch is the zero-based
// observation index assigned from the input image list; the raw image, its
// warped counterpart, and its masked residual all share the same epoch.
type ImageRef struct {
	Path  string `json:"path"`
	Epoch int    `json:"epoch"`
}

// Base returns the image's base name with directory and extension stripped.
// Derived filenames (background maps, catalogues, warped images) are all
// keyed on this base name.
func (r ImageRef) Base() string {
	name := filepath.Base(r.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsZero reports whether the reference points at nothing.
func (r ImageRef) IsZero() bool { return r.Path == "" }

// CatalogueRef identifies one tabular catalogue (FITS binary table) by path.
// A nil *CatalogueRef encodes the legitimate "no detections" outcome of the
// masked source-finding stage; collectors must tolerate it.
type CatalogueRef struct {
	Path  string `json:"path"`
	Epoch int    `json:"epoch"`
}

// IsZero reports whether the reference points at nothing.
func (r CatalogueRef) IsZero() bool { return r.Path == "" }

// Provenance records where a set of flux measurements came from. It is
// attached to each priorized measurement at creation time and materialised
// as table columns by the monitor stage, so that the joined flux table
// carries image and epoch identity per measurement group.
type Provenance struct {
	// Image is the base name of the epoch image the flux was measured on.
	Image string `json:"image"`
	// Epoch is the zero-based observation index of that image.
	Epoch int `json:"epoch"`
}

// RefCatalogue describes the externally supplied reference catalogue used
// for astrometric correction, with the column names holding its sky
// coordinates. The catalogue is immutable and shared read-only across all
// per-image warp instances.
type RefCatalogue struct {
	Path   string `json:"path"`
	RACol  string `json:"ra_col"`
	DecCol string `json:"dec_col"`
}

// OptionalFile is a file input that may be switched off independently of
// whether a path is configured (region-of-interest filter, monitoring
// source list).
type OptionalFile struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

// Active reports whether the file should be used: enabled and non-empty.
func (o OptionalFile) Active() bool { return o.Enabled && o.Path != "" }
