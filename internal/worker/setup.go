package worker

import (
	"github.com/ahrav/skywatch/internal/toolexec"
)

// InitializeRunner creates the subprocess runner shared by every stage
// activity. Returned for dependency injection rather than set as global
// state.
func InitializeRunner() toolexec.Runner {
	return toolexec.NewExecRunner()
}
