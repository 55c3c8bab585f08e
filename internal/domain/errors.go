package domain

import "errors"

// ErrInvalidRequest indicates that a pipeline request contains invalid data.
var ErrInvalidRequest = errors.New("invalid pipeline request")

// ErrTooFewImages indicates that fewer than two images were supplied to a
// stage that averages across epochs. Averaging a single image would be a
// silent scientific no-op, so the condition is fatal.
var ErrTooFewImages = errors.New("mean image requires at least 2 input images")

// ErrMissingOutput indicates that an external tool exited successfully but
// did not produce the output file the stage contract requires.
var ErrMissingOutput = errors.New("expected stage output is missing")

// ErrMissingInput indicates that a declared stage input does not exist on
// disk at invocation time.
var ErrMissingInput = errors.New("stage input does not exist")
