// Package statemachine guards the escrow contract lifecycle. It is the trust
// layer of the clearinghouse: no matter what the services or the workflow do,
// an illegal transition (e.g. CREATED -> COMPLETED) is rejected here.
//
// The machine is pure. It performs no I/O, keeps no global state, and only
// reports the current status and the events legal from it.
//
// Transition table:
//
//	CREATED       -> FUNDED           (on_chain_confirmed)
//	CREATED       -> FAILED           (timeout_expired)
//	FUNDED        -> IN_PROGRESS      (worker_accepts)
//	FUNDED        -> DISPUTED         (buyer_disputes)
//	IN_PROGRESS   -> SUBMITTED        (worker_submits)
//	IN_PROGRESS   -> DISPUTED         (buyer_disputes)
//	SUBMITTED     -> VERIFYING        (auto_verify)
//	VERIFYING     -> COMPLETED        (verification_passed)
//	VERIFYING     -> IN_PROGRESS      (verification_failed_retry)
//	VERIFYING     -> FAILED           (max_retries_exceeded)
//	DISPUTED      -> COMPLETED        (dispute_resolved_for_worker)
//	DISPUTED      -> FAILED           (dispute_resolved_for_buyer)
package statemachine

import (
	"sort"

	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
)

// transitions maps each status to the events legal from it and the status
// each event leads to.
var transitions = map[types.Status]map[types.TransitionEvent]types.Status{
	types.StatusCreated: {
		types.EvOnChainConfirmed: types.StatusFunded,
		types.EvTimeoutExpired:   types.StatusFailed,
	},
	types.StatusFunded: {
		types.EvWorkerAccepts: types.StatusInProgress,
		types.EvBuyerDisputes: types.StatusDisputed,
	},
	types.StatusInProgress: {
		types.EvWorkerSubmits: types.StatusSubmitted,
		types.EvBuyerDisputes: types.StatusDisputed,
	},
	types.StatusSubmitted: {
		types.EvAutoVerify: types.StatusVerifying,
	},
	types.StatusVerifying: {
		types.EvVerificationPassed:      types.StatusCompleted,
		types.EvVerificationFailedRetry: types.StatusInProgress,
		types.EvMaxRetriesExceeded:      types.StatusFailed,
	},
	types.StatusDisputed: {
		types.EvDisputeResolvedForWorker: types.StatusCompleted,
		types.EvDisputeResolvedForBuyer:  types.StatusFailed,
	},
	// Terminal states have no outgoing edges.
	types.StatusCompleted: {},
	types.StatusFailed:    {},
}

// eventTypes is the canonical transition event -> audit event type mapping.
var eventTypes = map[types.TransitionEvent]types.EventType{
	types.EvOnChainConfirmed:         types.EventContractFunded,
	types.EvTimeoutExpired:           types.EventContractExpired,
	types.EvWorkerAccepts:            types.EventWorkerAssigned,
	types.EvWorkerSubmits:            types.EventWorkSubmitted,
	types.EvAutoVerify:               types.EventVerificationStarted,
	types.EvVerificationPassed:       types.EventVerificationPassed,
	types.EvVerificationFailedRetry:  types.EventVerificationFailed,
	types.EvMaxRetriesExceeded:       types.EventMaxRetriesExceeded,
	types.EvBuyerDisputes:            types.EventDisputeRaised,
	types.EvDisputeResolvedForWorker: types.EventDisputeResolvedWorker,
	types.EvDisputeResolvedForBuyer:  types.EventDisputeResolvedBuyer,
}

// Machine validates transitions for a single contract. Construct one per
// guarded operation at the contract's current status.
type Machine struct {
	current types.Status
}

// New constructs a machine at the given status. Any status string outside the
// known state set fails with UnknownStateError.
func New(current types.Status) (*Machine, error) {
	if _, ok := transitions[current]; !ok {
		return nil, &types.UnknownStateError{Value: string(current), Valid: types.Statuses()}
	}
	return &Machine{current: current}, nil
}

// Status returns the machine's current status.
func (m *Machine) Status() types.Status {
	return m.current
}

// Fire validates the named event against the current status, advances the
// machine, and returns the new status. An event not legal from the current
// status fails with IllegalTransitionError.
func (m *Machine) Fire(ev types.TransitionEvent) (types.Status, error) {
	next, ok := transitions[m.current][ev]
	if !ok {
		return "", &types.IllegalTransitionError{Current: m.current, Attempted: ev}
	}
	m.current = next
	return next, nil
}

// AllowedEvents returns the events legal from the current status, sorted for
// deterministic output.
func (m *Machine) AllowedEvents() []types.TransitionEvent {
	out := make([]types.TransitionEvent, 0, len(transitions[m.current]))
	for ev := range transitions[m.current] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EventTypeFor returns the canonical audit event type recorded for a
// transition event.
func EventTypeFor(ev types.TransitionEvent) (types.EventType, bool) {
	et, ok := eventTypes[ev]
	return et, ok
}

// Legal reports whether firing ev from the given status is a valid
// transition, without constructing a machine.
func Legal(from types.Status, ev types.TransitionEvent) bool {
	_, ok := transitions[from][ev]
	return ok
}
