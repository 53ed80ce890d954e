package agent

import "fmt"

// UpstreamModelError reports that the LLM call failed or returned output
// that does not fit the expected decision schema. It aborts the current
// turn; tool-execution failures are handled inside the loop instead.
type UpstreamModelError struct {
	Reason string
	Err    error
}

func (e *UpstreamModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream model error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream model error: %s", e.Reason)
}

func (e *UpstreamModelError) Unwrap() error { return e.Err }
