// Package relay coordinates cross-chain transfer confirmations: an
// independent quorum machine, structurally the proof ledger minus the
// compliance gate. Relayer confirmations are always approvals, so completion
// is purely a set-size threshold.
package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/hdbridge/hdbridge/internal/registry"
	"github.com/hdbridge/hdbridge/types"
)

type transferState struct {
	mtx      sync.Mutex
	transfer *types.CrossChainTransfer
}

// Relay tracks cross-chain transfers and the chain endpoint table. Transfers
// are created on initiation and never deleted; completion moves the id from
// the pending index to the completed index.
type Relay struct {
	registry              *registry.Registry
	requiredConfirmations int
	timeNow               func() time.Time

	mtx        sync.RWMutex
	transfers  map[types.TransferID]*transferState
	pending    []types.TransferID
	pendingPos map[types.TransferID]int
	completed  []types.TransferID
	endpoints  map[types.ChainID]string
}

// Option configures a Relay.
type Option func(*Relay)

// WithTimeSource overrides the wall clock, for tests.
func WithTimeSource(now func() time.Time) Option {
	return func(r *Relay) { r.timeNow = now }
}

// New returns an empty relay backed by the given registry.
func New(reg *registry.Registry, requiredConfirmations int, opts ...Option) *Relay {
	r := &Relay{
		registry:              reg,
		requiredConfirmations: requiredConfirmations,
		timeNow:               time.Now,
		transfers:             make(map[types.TransferID]*transferState),
		pendingPos:            make(map[types.TransferID]int),
		endpoints:             make(map[types.ChainID]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterEndpoint records the endpoint reference for a chain. Admin only.
// Re-registration overwrites the previous endpoint.
func (r *Relay) RegisterEndpoint(caller types.Identity, chain types.ChainID, endpoint string) error {
	if !r.registry.HasRole(caller, types.RoleAdmin) {
		return types.ErrUnauthorized
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.endpoints[chain] = endpoint
	return nil
}

// Endpoint returns the registered endpoint reference for a chain.
func (r *Relay) Endpoint(chain types.ChainID) (string, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	ep, ok := r.endpoints[chain]
	return ep, ok
}

// Initiate records a new pending transfer. Relayer only. Both chains must
// have registered endpoints and the id must be fresh.
func (r *Relay) Initiate(
	relayer types.Identity,
	id types.TransferID,
	source, target types.ChainID,
	dataHash types.DataHash,
	amount uint64,
	recipient types.Identity,
) (*types.CrossChainTransfer, error) {
	if !r.registry.HasRole(relayer, types.RoleRelayer) {
		return nil, types.ErrUnauthorized
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	sourceEP, ok := r.endpoints[source]
	if !ok {
		return nil, types.ErrUnsupportedChain
	}
	targetEP, ok := r.endpoints[target]
	if !ok {
		return nil, types.ErrUnsupportedChain
	}
	if _, ok := r.transfers[id]; ok {
		return nil, types.ErrDuplicateTransfer
	}

	transfer := types.NewCrossChainTransfer(
		id, source, target, sourceEP, targetEP, dataHash, amount, recipient, relayer, r.timeNow(),
	)
	r.transfers[id] = &transferState{transfer: transfer}
	r.pendingPos[id] = len(r.pending)
	r.pending = append(r.pending, id)

	return transfer.Copy(), nil
}

// Confirm records a relayer's confirmation. Each relayer confirms a pending
// transfer at most once; the confirmation that reaches the threshold flips
// the transfer to completed. Past completion, confirmations are accepted as
// no-ops rather than errors, since relayers may race.
//
// added reports whether the confirmation mutated the set; completed reports
// whether the transfer is completed after this call.
func (r *Relay) Confirm(relayer types.Identity, id types.TransferID) (added, completed bool, err error) {
	if !r.registry.HasRole(relayer, types.RoleRelayer) {
		return false, false, types.ErrUnauthorized
	}
	st, err := r.state(id)
	if err != nil {
		return false, false, err
	}

	st.mtx.Lock()
	defer st.mtx.Unlock()

	if st.transfer.IsCompleted {
		return false, true, nil
	}
	if st.transfer.Confirmations.HasVoted(relayer) {
		return false, false, types.ErrDuplicateConfirmation
	}

	st.transfer.Confirmations.Add(relayer, true)

	if !st.transfer.ReadyToComplete(r.requiredConfirmations) {
		return true, false, nil
	}
	st.transfer.IsCompleted = true
	st.transfer.CompletedAt = r.timeNow()

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.removePendingLocked(id)
	r.completed = append(r.completed, id)
	return true, true, nil
}

func (r *Relay) removePendingLocked(id types.TransferID) {
	pos, ok := r.pendingPos[id]
	if !ok {
		return
	}
	last := len(r.pending) - 1
	moved := r.pending[last]
	r.pending[pos] = moved
	r.pendingPos[moved] = pos
	r.pending = r.pending[:last]
	delete(r.pendingPos, id)
}

// GetTransfer returns a copy of the transfer record.
func (r *Relay) GetTransfer(id types.TransferID) (*types.CrossChainTransfer, error) {
	st, err := r.state(id)
	if err != nil {
		return nil, err
	}
	st.mtx.Lock()
	defer st.mtx.Unlock()
	return st.transfer.Copy(), nil
}

// ListPending returns up to limit pending transfer ids. limit <= 0 means no
// limit.
func (r *Relay) ListPending(limit int) []types.TransferID {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	n := len(r.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]types.TransferID(nil), r.pending[:n]...)
}

// PendingCount returns the size of the pending index.
func (r *Relay) PendingCount() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.pending)
}

// Endpoints returns a copy of the chain endpoint table.
func (r *Relay) Endpoints() map[types.ChainID]string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make(map[types.ChainID]string, len(r.endpoints))
	for chain, ep := range r.endpoints {
		out[chain] = ep
	}
	return out
}

// Restore rebuilds the relay from persisted records and the endpoint table.
func (r *Relay) Restore(transfers []*types.CrossChainTransfer, endpoints map[types.ChainID]string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.transfers = make(map[types.TransferID]*transferState, len(transfers))
	r.pending = nil
	r.pendingPos = make(map[types.TransferID]int)
	r.completed = nil
	r.endpoints = make(map[types.ChainID]string, len(endpoints))
	for chain, ep := range endpoints {
		r.endpoints[chain] = ep
	}

	var done []*types.CrossChainTransfer
	for _, t := range transfers {
		r.transfers[t.ID] = &transferState{transfer: t}
		if t.IsCompleted {
			done = append(done, t)
			continue
		}
		r.pendingPos[t.ID] = len(r.pending)
		r.pending = append(r.pending, t.ID)
	}
	sort.Slice(done, func(i, j int) bool { return done[i].CompletedAt.Before(done[j].CompletedAt) })
	for _, t := range done {
		r.completed = append(r.completed, t.ID)
	}
}

func (r *Relay) state(id types.TransferID) (*transferState, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	st, ok := r.transfers[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return st, nil
}
