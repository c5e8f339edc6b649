// Package queue implements the consultation queue engine: deciding the next
// token to call, applying the recall policy for missed patients, and
// committing each advance atomically against session state.
package queue

// Decision is the outcome of one next-token computation.
type Decision struct {
	TokenNumber int
	IsRecall    bool
	MissedCount int
}

// MissedTokens returns the confirmed tokens the doctor has advanced past:
// every t in confirmed with t < current. confirmed must be ascending and
// contain only tokens still in the confirmed state, so completed, cancelled
// and no-show tokens can never re-enter the result. Recomputed from the
// appointment snapshot on every call; there is no incrementally-maintained
// copy to drift.
func MissedTokens(confirmed []int, current int) []int {
	var missed []int
	for _, t := range confirmed {
		if t >= current {
			break
		}
		missed = append(missed, t)
	}
	return missed
}

// NextToken decides the token to call next.
//
// With the session not started (current == 0) the first confirmed token is
// called. Otherwise, once callsSinceRecall reaches the configured interval
// and missed tokens exist, the earliest missed token is recalled and the
// counter resets; in all other cases the smallest confirmed token above
// current is called. When no sequential token remains, any missed token is
// recalled regardless of the interval — recall settings only pace recalls,
// they never strand a still-confirmed patient at the end of the queue.
//
// The second return value is false when nothing is callable.
func NextToken(confirmed []int, current, callsSinceRecall int, recallEnabled bool, interval int) (Decision, bool) {
	if current == 0 {
		if len(confirmed) == 0 {
			return Decision{}, false
		}
		return Decision{TokenNumber: confirmed[0]}, true
	}

	missed := MissedTokens(confirmed, current)

	if recallEnabled && interval > 0 && callsSinceRecall >= interval && len(missed) > 0 {
		return Decision{TokenNumber: missed[0], IsRecall: true, MissedCount: len(missed)}, true
	}

	for _, t := range confirmed {
		if t > current {
			return Decision{TokenNumber: t, MissedCount: len(missed)}, true
		}
	}

	if len(missed) > 0 {
		return Decision{TokenNumber: missed[0], IsRecall: true, MissedCount: len(missed)}, true
	}

	return Decision{}, false
}
