package types

import (
	"time"
)

// ComplianceStatus is the proof's regulatory sign-off dimension. It starts
// Unreviewed and mirrors the most recent compliance check until finalization.
type ComplianceStatus uint8

const (
	ComplianceUnreviewed ComplianceStatus = iota
	ComplianceCompliant
	ComplianceNonCompliant
)

func (s ComplianceStatus) String() string {
	switch s {
	case ComplianceUnreviewed:
		return "unreviewed"
	case ComplianceCompliant:
		return "compliant"
	case ComplianceNonCompliant:
		return "non_compliant"
	}
	return "unknown"
}

// DataProof is the record of a single attestation claim: an off-ledger data
// item (identified by hash, never by content) awaiting validator quorum and
// compliance sign-off before it may be treated as verified across two chains.
//
// A proof is created on submission and never deleted; finalization moves it
// from the pending index to the finalized index, but the record persists for
// audit.
type DataProof struct {
	ID          ProofID  `json:"id"`
	DataHash    DataHash `json:"data_hash"`
	SourceChain ChainID  `json:"source_chain"`
	TargetChain ChainID  `json:"target_chain"`
	Requester   Identity `json:"requester"`

	// RecordType is a free-text classification tag ("lab_result",
	// "imaging", ...). The coordinator does not interpret it.
	RecordType string `json:"record_type"`

	// ExternalReference optionally links to an off-ledger transaction record,
	// e.g. a permissioned-ledger transaction id.
	ExternalReference string `json:"external_reference,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`

	Votes            *VoteSet         `json:"votes"`
	ComplianceStatus ComplianceStatus `json:"compliance_status"`

	// Finalized is monotonic: it flips false -> true exactly once and is
	// never reset. Finalized implies quorum AND a compliant review.
	Finalized   time.Time `json:"finalized_at,omitempty"`
	IsFinalized bool      `json:"finalized"`
}

// NewDataProof returns a pending proof with an empty vote set and an
// unreviewed compliance status. Input validation happens in the ledger.
func NewDataProof(
	id ProofID,
	dataHash DataHash,
	source, target ChainID,
	requester Identity,
	recordType, externalRef string,
	now time.Time,
) *DataProof {
	return &DataProof{
		ID:                id,
		DataHash:          dataHash,
		SourceChain:       source,
		TargetChain:       target,
		Requester:         requester,
		RecordType:        recordType,
		ExternalReference: externalRef,
		SubmittedAt:       now,
		Votes:             NewVoteSet(),
		ComplianceStatus:  ComplianceUnreviewed,
	}
}

// Copy returns an independent copy of the proof, safe to hand to readers.
func (p *DataProof) Copy() *DataProof {
	cp := *p
	cp.Votes = p.Votes.Copy()
	return &cp
}

// WindowClosed reports whether the validation window has expired, after which
// further votes are rejected. The proof itself stays pending; expiry is not a
// terminal state.
func (p *DataProof) WindowClosed(now time.Time, window time.Duration) bool {
	return now.After(p.SubmittedAt.Add(window))
}

// ReadyToFinalize evaluates the finalization predicate against the current
// aggregate state: validator quorum reached AND the latest compliance review
// passed. Vote order and review order do not matter.
func (p *DataProof) ReadyToFinalize(requiredValidators int) bool {
	return !p.IsFinalized &&
		p.Votes.HasQuorum(requiredValidators) &&
		p.ComplianceStatus == ComplianceCompliant
}
