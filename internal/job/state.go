package job

// CanTransition enforces the lifecycle edges
// queued -> active -> completed | failed. Terminal states have no exits.
func CanTransition(from, to State) bool {
	switch from {
	case StateQueued:
		return to == StateActive
	case StateActive:
		return to == StateCompleted || to == StateFailed
	default:
		return false
	}
}
