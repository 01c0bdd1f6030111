package storage

// Run lifecycle statuses. A run moves queued -> running -> reporting ->
// completed; failed is reachable from any non-terminal status. completed
// and failed are terminal.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusReporting = "reporting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StaleStatuses is the non-terminal set swept by crash recovery at startup.
func StaleStatuses() []string {
	return []string{StatusQueued, StatusRunning, StatusReporting}
}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// ValidTransition reports whether moving a run from one status to another
// respects the lifecycle. Terminal statuses never transition.
func ValidTransition(from, to string) bool {
	if IsTerminalStatus(from) {
		return false
	}
	switch to {
	case StatusFailed:
		return true
	case StatusRunning:
		return from == StatusQueued
	case StatusReporting:
		return from == StatusRunning
	case StatusCompleted:
		return from == StatusRunning || from == StatusReporting
	}
	return false
}
