package domain

// Reserved names of the built-in failure-recovery state.
const (
	// StateFailed is the reserved state every automaton receives on creation.
	StateFailed = "failed"

	// ActionFailed captures a failure into the buffer and enters StateFailed.
	ActionFailed = "failed"

	// ActionBack leaves StateFailed and returns to the state recorded in the buffer.
	ActionBack = "back"
)

// Well-known keys.
const (
	// KeyFailedOutput is the buffer key holding the last captured FailedOutput.
	KeyFailedOutput = "failedOutput"

	// OutputContext holds the deep context snapshot in a transition output.
	OutputContext = "context"

	// OutputBuffer holds the live buffer reference in a transition output.
	OutputBuffer = "buffer"

	// OutputError holds the diagnostic error of an unmatched or failed action.
	OutputError = "error"
)

// FailedOutput is the record stored in the buffer when a transition fails.
type FailedOutput struct {
	Message string `json:"message" mapstructure:"message"`
	From    string `json:"from" mapstructure:"from"`
}
