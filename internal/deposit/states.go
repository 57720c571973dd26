package deposit

import "strings"

// State represents the lifecycle position of a deposit in the pipeline.
type State string

const (
	StateDepositedByJournal State = "depositedByJournal"
	StateHarvested          State = "harvested"
	StatePayloadValidated   State = "payload-validated"
	StateBagValidated       State = "bag-validated"
	StateXMLValidated       State = "xml-validated"
	StateScanned            State = "scanned"
	StateReserialized       State = "reserialized"
	StateDeposited          State = "deposited"
	StateAgreement          State = "agreement"
	StateCleaned            State = "cleaned"
	StateFailed             State = "failed"
)

// PipelineOrder lists the forward pipeline states in processing order.
// StateFailed is a side state reachable from any of them and is not part
// of the order.
var PipelineOrder = []State{
	StateDepositedByJournal,
	StateHarvested,
	StatePayloadValidated,
	StateBagValidated,
	StateXMLValidated,
	StateScanned,
	StateReserialized,
	StateDeposited,
	StateAgreement,
	StateCleaned,
}

var allStates = append(append([]State{}, PipelineOrder...), StateFailed)

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var pipelineIndex = func() map[State]int {
	idx := make(map[State]int, len(PipelineOrder))
	for i, state := range PipelineOrder {
		idx[state] = i
	}
	return idx
}()

// AllStates returns every known state, pipeline order first, then failed.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	candidate := State(strings.TrimSpace(value))
	if candidate == "" {
		return "", false
	}
	_, ok := stateSet[candidate]
	return candidate, ok
}

// Next returns the pipeline state following from. It returns false for
// terminal and side states.
func Next(from State) (State, bool) {
	idx, ok := pipelineIndex[from]
	if !ok || idx == len(PipelineOrder)-1 {
		return "", false
	}
	return PipelineOrder[idx+1], true
}

// CanTransition reports whether the edge from → to exists in the state
// machine: one step forward along the pipeline, or any pipeline state to
// failed. Terminal states have no outgoing edges.
func CanTransition(from, to State) bool {
	if from == StateCleaned || from == StateFailed {
		return false
	}
	if to == StateFailed {
		_, inPipeline := pipelineIndex[from]
		return inPipeline
	}
	next, ok := Next(from)
	return ok && next == to
}

// Terminal reports whether a state ends active processing for a deposit.
func (s State) Terminal() bool {
	return s == StateCleaned || s == StateFailed
}
