package booking

// CanTransition reports whether a booking may move from one status to
// another. correction unlocks reverting in_progress and done bookings.
func CanTransition(from, to Status, correction bool) bool {
	switch to {
	case StatusWaiting:
		// waiting -> waiting only refreshes billing
		return from == StatusScheduled || from == StatusWaiting
	case StatusInProgress:
		return from == StatusWaiting
	case StatusDone:
		return from == StatusInProgress
	case StatusCancelled:
		return from == StatusScheduled || from == StatusWaiting || from == StatusNoShow
	case StatusNoShow:
		return from == StatusScheduled || from == StatusWaiting
	case StatusScheduled:
		if from == StatusWaiting || from == StatusNoShow {
			return true
		}
		return correction && (from == StatusInProgress || from == StatusDone)
	}
	return false
}

func checkTransition(from, to Status, correction bool) error {
	if !CanTransition(from, to, correction) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
