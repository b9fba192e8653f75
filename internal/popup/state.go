package popup

import "github.com/ragassist/cli/pkg/process"

// Phase is where the response region is in its lifecycle.
type Phase int

const (
	// Hidden is the initial phase; nothing has been submitted yet.
	Hidden Phase = iota
	// Pending means a validated submit is waiting on the server.
	Pending
	// Success holds the rendered server response.
	Success
	// Failed holds an "Error: ..." line.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Hidden:
		return "hidden"
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the response region.
type State struct {
	Phase   Phase
	Content string
	// Submission is the generation that produced this state, zero while hidden.
	Submission uint64
	// Result is set in the Success phase.
	Result *process.Result
	// Err is set in the Failed phase.
	Err error
}

// Visible reports whether the region is shown at all.
func (s State) Visible() bool {
	return s.Phase != Hidden
}
