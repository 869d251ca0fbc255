// Package ledger holds data-proof records, their per-validator vote sets and
// compliance reviews, and runs the finalization engine: a proof transitions
// to its terminal state once validator quorum AND a compliant review are both
// in place, in whichever order they arrive.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/hdbridge/hdbridge/internal/registry"
	"github.com/hdbridge/hdbridge/types"
)

// proofState is the single-writer unit of the ledger. Its mutex serializes
// all mutations of one proof, so a duplicate-vote check always sees the
// vote ordered before it. Votes on different proofs never contend.
//
// Lock order: state.mtx before Ledger.mtx. The ledger lock is only taken
// with a state lock held inside finalize, and lookups never hold both.
type proofState struct {
	mtx   sync.Mutex
	proof *types.DataProof
	check *types.ComplianceCheck
}

// Ledger is the proof ledger plus finalization engine. Proofs are created on
// submission and never deleted; finalization moves the id from the pending
// index to the finalized index.
type Ledger struct {
	registry           *registry.Registry
	requiredValidators int
	validationWindow   time.Duration
	timeNow            func() time.Time

	mtx        sync.RWMutex
	proofs     map[types.ProofID]*proofState
	pending    []types.ProofID
	pendingPos map[types.ProofID]int // id -> index in pending, for O(1) swap-and-pop
	finalized  []types.ProofID
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTimeSource overrides the wall clock, for tests.
func WithTimeSource(now func() time.Time) Option {
	return func(l *Ledger) { l.timeNow = now }
}

// New returns an empty ledger backed by the given registry.
func New(reg *registry.Registry, requiredValidators int, validationWindow time.Duration, opts ...Option) *Ledger {
	l := &Ledger{
		registry:           reg,
		requiredValidators: requiredValidators,
		validationWindow:   validationWindow,
		timeNow:            time.Now,
		proofs:             make(map[types.ProofID]*proofState),
		pendingPos:         make(map[types.ProofID]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit records a new pending proof. The requester must hold an
// authorized-source grant. The id must be fresh, the hash non-zero, and the
// chains distinct.
func (l *Ledger) Submit(
	requester types.Identity,
	id types.ProofID,
	dataHash types.DataHash,
	source, target types.ChainID,
	recordType, externalRef string,
) (*types.DataProof, error) {
	if !l.registry.IsAuthorizedSource(requester) {
		return nil, types.ErrUnauthorized
	}
	if dataHash.IsZero() {
		return nil, types.ErrInvalidHash
	}
	if source == target {
		return nil, types.ErrSameChain
	}

	proof := types.NewDataProof(id, dataHash, source, target, requester, recordType, externalRef, l.timeNow())

	l.mtx.Lock()
	defer l.mtx.Unlock()
	if _, ok := l.proofs[id]; ok {
		return nil, types.ErrDuplicateProof
	}
	l.proofs[id] = &proofState{proof: proof}
	l.pendingPos[id] = len(l.pending)
	l.pending = append(l.pending, id)

	return proof.Copy(), nil
}

// CastVote records a validator's approve/reject vote. Each validator gets
// one vote per proof; a rejection consumes the allowance without counting
// toward quorum. The returned flag reports whether this vote finalized the
// proof.
func (l *Ledger) CastVote(voter types.Identity, id types.ProofID, approve bool) (bool, error) {
	if !l.registry.HasRole(voter, types.RoleValidator) {
		return false, types.ErrUnauthorized
	}
	st, err := l.state(id)
	if err != nil {
		return false, err
	}

	st.mtx.Lock()
	defer st.mtx.Unlock()

	if st.proof.IsFinalized {
		return false, types.ErrAlreadyFinalized
	}
	if st.proof.Votes.HasVoted(voter) {
		return false, types.ErrDuplicateVote
	}
	if st.proof.WindowClosed(l.timeNow(), l.validationWindow) {
		return false, types.ErrWindowExpired
	}

	st.proof.Votes.Add(voter, approve)
	if approve {
		l.registry.RecordApprovingVote(voter)
	}

	return l.maybeFinalize(st), nil
}

// ReviewCompliance records a regulatory review for a proof. Re-reviews before
// finalization overwrite the prior check wholesale (last review wins). The
// returned flag reports whether this review finalized the proof.
func (l *Ledger) ReviewCompliance(
	reviewer types.Identity,
	id types.ProofID,
	hipaa, gdpr, researchApproved bool,
	violations []string,
) (bool, error) {
	if !l.registry.HasRole(reviewer, types.RoleComplianceReviewer) {
		return false, types.ErrUnauthorized
	}
	st, err := l.state(id)
	if err != nil {
		return false, err
	}

	st.mtx.Lock()
	defer st.mtx.Unlock()

	if st.proof.IsFinalized {
		return false, types.ErrAlreadyFinalized
	}

	check := &types.ComplianceCheck{
		ProofID:          id,
		HIPAACompliant:   hipaa,
		GDPRCompliant:    gdpr,
		ResearchApproved: researchApproved,
		Violations:       append([]string(nil), violations...),
		Reviewer:         reviewer,
		ReviewedAt:       l.timeNow(),
	}
	st.check = check
	st.proof.ComplianceStatus = check.Status()

	return l.maybeFinalize(st), nil
}

// maybeFinalize evaluates the finalization predicate and commits the
// transition. Called with st.mtx held, after every mutating call; whichever
// condition completes last triggers finalization.
func (l *Ledger) maybeFinalize(st *proofState) bool {
	if !st.proof.ReadyToFinalize(l.requiredValidators) {
		return false
	}
	st.proof.IsFinalized = true
	st.proof.Finalized = l.timeNow()

	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.removePendingLocked(st.proof.ID)
	l.finalized = append(l.finalized, st.proof.ID)
	return true
}

// removePendingLocked removes the id from the pending index by swapping it
// with the last entry and popping, so removal stays O(1) and leaves no gaps.
func (l *Ledger) removePendingLocked(id types.ProofID) {
	pos, ok := l.pendingPos[id]
	if !ok {
		return
	}
	last := len(l.pending) - 1
	moved := l.pending[last]
	l.pending[pos] = moved
	l.pendingPos[moved] = pos
	l.pending = l.pending[:last]
	delete(l.pendingPos, id)
}

// GetProof returns a copy of the proof record.
func (l *Ledger) GetProof(id types.ProofID) (*types.DataProof, error) {
	st, err := l.state(id)
	if err != nil {
		return nil, err
	}
	st.mtx.Lock()
	defer st.mtx.Unlock()
	return st.proof.Copy(), nil
}

// GetComplianceCheck returns a copy of the latest review for a proof, or
// ErrNotFound if the proof is unknown or still unreviewed.
func (l *Ledger) GetComplianceCheck(id types.ProofID) (*types.ComplianceCheck, error) {
	st, err := l.state(id)
	if err != nil {
		return nil, err
	}
	st.mtx.Lock()
	defer st.mtx.Unlock()
	if st.check == nil {
		return nil, types.ErrNotFound
	}
	cp := *st.check
	cp.Violations = append([]string(nil), st.check.Violations...)
	return &cp, nil
}

// ListPending returns up to limit pending proof ids, filtering out any that
// finalized but have not been swept from the index yet. limit <= 0 means no
// limit.
func (l *Ledger) ListPending(limit int) []types.ProofID {
	l.mtx.RLock()
	ids := append([]types.ProofID(nil), l.pending...)
	l.mtx.RUnlock()

	out := make([]types.ProofID, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		st, err := l.state(id)
		if err != nil {
			continue
		}
		st.mtx.Lock()
		done := st.proof.IsFinalized
		st.mtx.Unlock()
		if !done {
			out = append(out, id)
		}
	}
	return out
}

// ListFinalized returns up to limit finalized proof ids in finalization
// order. limit <= 0 means no limit.
func (l *Ledger) ListFinalized(limit int) []types.ProofID {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	n := len(l.finalized)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]types.ProofID(nil), l.finalized[:n]...)
}

// PendingCount returns the size of the pending index.
func (l *Ledger) PendingCount() int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return len(l.pending)
}

// Restore rebuilds the ledger from persisted records, reconstructing the
// pending and finalized indexes. Finalization order within the restored set
// follows the finalization timestamps.
func (l *Ledger) Restore(proofs []*types.DataProof, checks []*types.ComplianceCheck) {
	byID := make(map[types.ProofID]*types.ComplianceCheck, len(checks))
	for _, c := range checks {
		byID[c.ProofID] = c
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.proofs = make(map[types.ProofID]*proofState, len(proofs))
	l.pending = nil
	l.pendingPos = make(map[types.ProofID]int)
	l.finalized = nil

	var done []*types.DataProof
	for _, p := range proofs {
		l.proofs[p.ID] = &proofState{proof: p, check: byID[p.ID]}
		if p.IsFinalized {
			done = append(done, p)
			continue
		}
		l.pendingPos[p.ID] = len(l.pending)
		l.pending = append(l.pending, p.ID)
	}
	sort.Slice(done, func(i, j int) bool { return done[i].Finalized.Before(done[j].Finalized) })
	for _, p := range done {
		l.finalized = append(l.finalized, p.ID)
	}
}

func (l *Ledger) state(id types.ProofID) (*proofState, error) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	st, ok := l.proofs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return st, nil
}
