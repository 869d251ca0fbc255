package types

import "time"

// CrossChainTransfer tracks a single value/data-reference transfer between
// two chains, awaiting relayer quorum. Structurally it is the proof state
// machine minus the compliance dimension.
type CrossChainTransfer struct {
	ID             TransferID `json:"id"`
	SourceChain    ChainID    `json:"source_chain"`
	TargetChain    ChainID    `json:"target_chain"`
	SourceEndpoint string     `json:"source_endpoint"`
	TargetEndpoint string     `json:"target_endpoint"`
	DataHash       DataHash   `json:"data_hash"`
	Amount         uint64     `json:"amount"`
	Recipient      Identity   `json:"recipient"`
	InitiatedBy    Identity   `json:"initiated_by"`
	InitiatedAt    time.Time  `json:"initiated_at"`

	// Confirmations holds one entry per relayer. Relayer confirmations are
	// always approvals, so quorum is simply the set size.
	Confirmations *VoteSet `json:"confirmations"`

	// Completed is monotonic: once true it never resets, and surplus
	// confirmations are accepted as no-ops since relayers may race.
	CompletedAt time.Time `json:"completed_at,omitempty"`
	IsCompleted bool      `json:"completed"`
}

// NewCrossChainTransfer returns a pending transfer with no confirmations.
func NewCrossChainTransfer(
	id TransferID,
	source, target ChainID,
	sourceEndpoint, targetEndpoint string,
	dataHash DataHash,
	amount uint64,
	recipient, initiator Identity,
	now time.Time,
) *CrossChainTransfer {
	return &CrossChainTransfer{
		ID:             id,
		SourceChain:    source,
		TargetChain:    target,
		SourceEndpoint: sourceEndpoint,
		TargetEndpoint: targetEndpoint,
		DataHash:       dataHash,
		Amount:         amount,
		Recipient:      recipient,
		InitiatedBy:    initiator,
		InitiatedAt:    now,
		Confirmations:  NewVoteSet(),
	}
}

// Copy returns an independent copy of the transfer, safe to hand to readers.
func (t *CrossChainTransfer) Copy() *CrossChainTransfer {
	cp := *t
	cp.Confirmations = t.Confirmations.Copy()
	return &cp
}

// ReadyToComplete reports whether relayer confirmations meet the threshold.
func (t *CrossChainTransfer) ReadyToComplete(required int) bool {
	return !t.IsCompleted && t.Confirmations.HasQuorum(required)
}
