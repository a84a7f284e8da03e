package jobs

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidTransition is returned when an update would move a job backwards
	// or out of a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOutputExists is returned when a copy output is saved twice for one job.
	ErrOutputExists = errors.New("copy output already saved")
	// ErrUnknownKind is returned when a job kind is not recognized.
	ErrUnknownKind = errors.New("unknown job kind")
)

var (
	transcriptFlow = []Status{StatusQueued, StatusResolving, StatusTranscribing, StatusSucceeded}
	copyFlow       = []Status{StatusQueued, StatusGenerating, StatusSucceeded}
)

func flowFor(kind Kind) []Status {
	if kind == KindTranscript {
		return transcriptFlow
	}
	return copyFlow
}

// CanTransition reports whether a job of kind may move from one status to
// another. Staying in place is allowed so patches can be applied without a
// status change; failed is reachable from every non-terminal status.
func CanTransition(kind Kind, from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	if to == StatusFailed {
		return true
	}
	flow := flowFor(kind)
	fromIdx := slices.Index(flow, from)
	toIdx := slices.Index(flow, to)
	return fromIdx >= 0 && toIdx > fromIdx
}

func checkTransition(job Job, to Status) error {
	if !CanTransition(job.Kind, job.Status, to) {
		return fmt.Errorf("%w: %s job %s cannot move from %s to %s", ErrInvalidTransition, job.Kind, job.ID, job.Status, to)
	}
	return nil
}
