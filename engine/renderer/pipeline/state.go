package pipeline

import "fmt"

// State tracks construction progress. It only moves forward, except on
// Destroy which returns it to STATE_UNINITIALIZED.
type State int

const (
	STATE_UNINITIALIZED State = iota
	STATE_ATTACHMENTS_DECLARED
	STATE_RENDER_PASSES_COMPILED
	STATE_PIPELINE_STATES_BUILT
	STATE_DESCRIPTORS_ALLOCATED
	STATE_READY
)

var stateNames = [...]string{
	"uninitialized",
	"attachments_declared",
	"render_passes_compiled",
	"pipeline_states_built",
	"descriptors_allocated",
	"ready",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
