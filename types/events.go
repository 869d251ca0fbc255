package types

import "time"

// EventKind names a bridge event. External consumers (audit-log writers,
// webhook dispatchers, block-explorer-style indexers) subscribe by kind.
type EventKind string

const (
	EventProofSubmitted     EventKind = "proof_submitted"
	EventVoteCast           EventKind = "vote_cast"
	EventComplianceReviewed EventKind = "compliance_reviewed"
	EventProofFinalized     EventKind = "proof_finalized"

	EventTransferInitiated EventKind = "transfer_initiated"
	EventTransferConfirmed EventKind = "transfer_confirmed"
	EventTransferCompleted EventKind = "transfer_completed"

	EventPaused           EventKind = "paused"
	EventUnpaused         EventKind = "unpaused"
	EventRoleGranted      EventKind = "role_granted"
	EventRoleRevoked      EventKind = "role_revoked"
	EventSourceAuthorized EventKind = "source_authorized"
	EventSourceRevoked    EventKind = "source_revoked"
	EventChainRegistered  EventKind = "chain_registered"
)

// ResultOK marks a committed mutation in an event record.
const ResultOK = "ok"

// Event is the structured record emitted after every committed mutation.
// Ref carries the proof or transfer id in hex, empty for admin events that
// concern no record.
type Event struct {
	Kind      EventKind `json:"kind"`
	Ref       string    `json:"ref,omitempty"`
	Actor     Identity  `json:"actor"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the given clock reading.
func NewEvent(kind EventKind, ref string, actor Identity, now time.Time) Event {
	return Event{
		Kind:      kind,
		Ref:       ref,
		Actor:     actor,
		Result:    ResultOK,
		Timestamp: now,
	}
}
