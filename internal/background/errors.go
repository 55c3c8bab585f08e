package background

import "go.temporal.io/sdk/temporal"

// nonRetryable wraps an error as a Temporal non-retryable application error.
// The pipeline defines no retry semantics of its own; every stage failure
// propagates to the runtime's default abort policy.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
