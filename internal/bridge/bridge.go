// Package bridge exposes the coordinator's full operation set behind a
// single facade: proof submission and voting, compliance review, transfer
// confirmation, the admin control surface, and read queries. The facade owns
// the pause gate, write-through persistence, metrics, and event emission;
// the quorum semantics live in the ledger and relay packages.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/hdbridge/hdbridge/internal/eventbus"
	"github.com/hdbridge/hdbridge/internal/ledger"
	"github.com/hdbridge/hdbridge/internal/registry"
	"github.com/hdbridge/hdbridge/internal/relay"
	"github.com/hdbridge/hdbridge/internal/store"
	"github.com/hdbridge/hdbridge/libs/log"
	"github.com/hdbridge/hdbridge/libs/service"
	"github.com/hdbridge/hdbridge/types"
)

// Bridge wires the actor registry, proof ledger, transfer relay, store and
// event bus into the externally visible coordinator. Every mutating call is
// atomic: on error nothing is committed, on success the record is persisted
// and exactly one event per state change is emitted.
type Bridge struct {
	service.BaseService
	logger log.Logger

	registry *registry.Registry
	ledger   *ledger.Ledger
	relay    *relay.Relay
	store    *store.Store
	bus      *eventbus.EventBus
	metrics  *Metrics
	timeNow  func() time.Time

	pauseMtx sync.RWMutex
	paused   bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics attaches prometheus-backed metrics. Defaults to no-op metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithTimeSource overrides the wall clock, for tests. It does not reach into
// the ledger or relay clocks; construct those with their own option.
func WithTimeSource(now func() time.Time) Option {
	return func(b *Bridge) { b.timeNow = now }
}

// New assembles a bridge from its components.
func New(
	logger log.Logger,
	reg *registry.Registry,
	ldg *ledger.Ledger,
	rly *relay.Relay,
	st *store.Store,
	bus *eventbus.EventBus,
	opts ...Option,
) *Bridge {
	b := &Bridge{
		logger:   logger,
		registry: reg,
		ledger:   ldg,
		relay:    rly,
		store:    st,
		bus:      bus,
		metrics:  NopMetrics(),
		timeNow:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.BaseService = *service.NewBaseService(logger, "Bridge", b)
	return b
}

// OnStart rehydrates in-memory state from the store. The registry snapshot,
// if present, replaces the bootstrap admin set the registry was constructed
// with.
func (b *Bridge) OnStart(context.Context) error {
	var snap registry.Snapshot
	found, err := b.store.LoadRegistrySnapshot(&snap)
	if err != nil {
		return err
	}
	if found {
		b.registry.Restore(snap)
	} else if err := b.store.SaveRegistrySnapshot(b.registry.Snapshot()); err != nil {
		return err
	}

	proofs, err := b.store.LoadProofs()
	if err != nil {
		return err
	}
	checks, err := b.store.LoadComplianceChecks()
	if err != nil {
		return err
	}
	b.ledger.Restore(proofs, checks)

	transfers, err := b.store.LoadTransfers()
	if err != nil {
		return err
	}
	endpoints, err := b.store.LoadEndpoints()
	if err != nil {
		return err
	}
	b.relay.Restore(transfers, endpoints)

	b.metrics.PendingProofs.Set(float64(b.ledger.PendingCount()))
	b.metrics.PendingTransfers.Set(float64(b.relay.PendingCount()))

	b.logger.Info("bridge state rehydrated",
		"proofs", len(proofs), "transfers", len(transfers), "pending", b.ledger.PendingCount())
	return nil
}

func (b *Bridge) OnStop() {}

// SubmitProof records a new pending proof from an authorized source.
func (b *Bridge) SubmitProof(
	actor types.Identity,
	id types.ProofID,
	dataHash types.DataHash,
	source, target types.ChainID,
	recordType, externalRef string,
) (*types.DataProof, error) {
	if err := b.mutable(); err != nil {
		return nil, err
	}
	proof, err := b.ledger.Submit(actor, id, dataHash, source, target, recordType, externalRef)
	if err != nil {
		return nil, b.reject("submit proof", err, "proof_id", id)
	}

	b.persistProof(proof)
	b.metrics.ProofsSubmitted.Add(1)
	b.metrics.PendingProofs.Set(float64(b.ledger.PendingCount()))
	b.emit(types.EventProofSubmitted, id.String(), actor)
	return proof, nil
}

// CastVote records a validator's approve/reject vote on a pending proof and
// reports whether the vote finalized it.
func (b *Bridge) CastVote(actor types.Identity, id types.ProofID, approve bool) (bool, error) {
	if err := b.mutable(); err != nil {
		return false, err
	}
	finalized, err := b.ledger.CastVote(actor, id, approve)
	if err != nil {
		return false, b.reject("cast vote", err, "proof_id", id, "approve", approve)
	}

	b.persistProofByID(id)
	b.metrics.VotesCast.Add(1)
	b.emit(types.EventVoteCast, id.String(), actor)
	if finalized {
		b.finalized(actor, id)
	}
	return finalized, nil
}

// ReviewCompliance records a regulatory review on a pending proof and
// reports whether the review finalized it.
func (b *Bridge) ReviewCompliance(
	actor types.Identity,
	id types.ProofID,
	hipaa, gdpr, researchApproved bool,
	violations []string,
) (bool, error) {
	if err := b.mutable(); err != nil {
		return false, err
	}
	finalized, err := b.ledger.ReviewCompliance(actor, id, hipaa, gdpr, researchApproved, violations)
	if err != nil {
		return false, b.reject("review compliance", err, "proof_id", id)
	}

	b.persistProofByID(id)
	if check, err := b.ledger.GetComplianceCheck(id); err == nil {
		if err := b.store.SaveComplianceCheck(check); err != nil {
			b.logger.Error("failed to persist compliance check", "proof_id", id, "err", err)
		}
	}
	b.metrics.ComplianceReviews.Add(1)
	b.emit(types.EventComplianceReviewed, id.String(), actor)
	if finalized {
		b.finalized(actor, id)
	}
	return finalized, nil
}

// InitiateTransfer records a new pending cross-chain transfer.
func (b *Bridge) InitiateTransfer(
	actor types.Identity,
	id types.TransferID,
	source, target types.ChainID,
	dataHash types.DataHash,
	amount uint64,
	recipient types.Identity,
) (*types.CrossChainTransfer, error) {
	if err := b.mutable(); err != nil {
		return nil, err
	}
	transfer, err := b.relay.Initiate(actor, id, source, target, dataHash, amount, recipient)
	if err != nil {
		return nil, b.reject("initiate transfer", err, "transfer_id", id)
	}

	b.persistTransfer(transfer)
	b.metrics.TransfersInitiated.Add(1)
	b.metrics.PendingTransfers.Set(float64(b.relay.PendingCount()))
	b.emit(types.EventTransferInitiated, id.String(), actor)
	return transfer, nil
}

// ConfirmTransfer records a relayer confirmation and reports whether the
// transfer is completed after this call. Confirmations past completion are
// accepted as no-ops.
func (b *Bridge) ConfirmTransfer(actor types.Identity, id types.TransferID) (bool, error) {
	if err := b.mutable(); err != nil {
		return false, err
	}
	added, completed, err := b.relay.Confirm(actor, id)
	if err != nil {
		return false, b.reject("confirm transfer", err, "transfer_id", id)
	}
	if !added {
		// surplus confirmation on a completed transfer
		return completed, nil
	}

	b.persistTransferByID(id)
	b.metrics.TransferConfirmations.Add(1)
	b.emit(types.EventTransferConfirmed, id.String(), actor)
	if completed {
		b.metrics.TransfersCompleted.Add(1)
		b.metrics.PendingTransfers.Set(float64(b.relay.PendingCount()))
		b.emit(types.EventTransferCompleted, id.String(), actor)
	}
	return completed, nil
}

// GrantRole grants a role to an identity. Admin only; idempotent.
func (b *Bridge) GrantRole(actor, id types.Identity, role types.Role) error {
	if err := b.registry.GrantRole(actor, id, role); err != nil {
		return b.reject("grant role", err, "identity", id, "role", role)
	}
	b.persistRegistry()
	b.emit(types.EventRoleGranted, string(id), actor)
	return nil
}

// RevokeRole removes a role from an identity. Admin only; idempotent.
func (b *Bridge) RevokeRole(actor, id types.Identity, role types.Role) error {
	if err := b.registry.RevokeRole(actor, id, role); err != nil {
		return b.reject("revoke role", err, "identity", id, "role", role)
	}
	b.persistRegistry()
	b.emit(types.EventRoleRevoked, string(id), actor)
	return nil
}

// AddAuthorizedSource permits an identity to submit proofs. Admin only.
func (b *Bridge) AddAuthorizedSource(actor, id types.Identity) error {
	if err := b.registry.AddAuthorizedSource(actor, id); err != nil {
		return b.reject("add authorized source", err, "identity", id)
	}
	b.persistRegistry()
	b.emit(types.EventSourceAuthorized, string(id), actor)
	return nil
}

// RemoveAuthorizedSource revokes an identity's submission grant. Admin only.
func (b *Bridge) RemoveAuthorizedSource(actor, id types.Identity) error {
	if err := b.registry.RemoveAuthorizedSource(actor, id); err != nil {
		return b.reject("remove authorized source", err, "identity", id)
	}
	b.persistRegistry()
	b.emit(types.EventSourceRevoked, string(id), actor)
	return nil
}

// RegisterChainEndpoint records the endpoint reference for a chain. Admin
// only.
func (b *Bridge) RegisterChainEndpoint(actor types.Identity, chain types.ChainID, endpoint string) error {
	if err := b.relay.RegisterEndpoint(actor, chain, endpoint); err != nil {
		return b.reject("register chain endpoint", err, "chain", chain)
	}
	if err := b.store.SaveEndpoints(b.relay.Endpoints()); err != nil {
		b.logger.Error("failed to persist endpoint table", "err", err)
	}
	b.emit(types.EventChainRegistered, string(chain), actor)
	return nil
}

// Pause blocks all mutating operations until Unpause. Admin only. The pause
// is a manual override with no automatic time bound; reads keep working.
func (b *Bridge) Pause(actor types.Identity) error {
	if !b.registry.HasRole(actor, types.RoleAdmin) {
		return b.reject("pause", types.ErrUnauthorized)
	}
	b.pauseMtx.Lock()
	b.paused = true
	b.pauseMtx.Unlock()
	b.logger.Info("bridge paused", "actor", actor)
	b.emit(types.EventPaused, "", actor)
	return nil
}

// Unpause lifts the pause override. Admin only.
func (b *Bridge) Unpause(actor types.Identity) error {
	if !b.registry.HasRole(actor, types.RoleAdmin) {
		return b.reject("unpause", types.ErrUnauthorized)
	}
	b.pauseMtx.Lock()
	b.paused = false
	b.pauseMtx.Unlock()
	b.logger.Info("bridge unpaused", "actor", actor)
	b.emit(types.EventUnpaused, "", actor)
	return nil
}

// IsPaused reports whether the pause override is active.
func (b *Bridge) IsPaused() bool {
	b.pauseMtx.RLock()
	defer b.pauseMtx.RUnlock()
	return b.paused
}

// GetProof returns a copy of a proof record.
func (b *Bridge) GetProof(id types.ProofID) (*types.DataProof, error) {
	return b.ledger.GetProof(id)
}

// GetComplianceCheck returns a copy of the latest review for a proof.
func (b *Bridge) GetComplianceCheck(id types.ProofID) (*types.ComplianceCheck, error) {
	return b.ledger.GetComplianceCheck(id)
}

// ListPending returns up to limit pending proof ids.
func (b *Bridge) ListPending(limit int) []types.ProofID {
	return b.ledger.ListPending(limit)
}

// ListFinalized returns up to limit finalized proof ids in finalization
// order.
func (b *Bridge) ListFinalized(limit int) []types.ProofID {
	return b.ledger.ListFinalized(limit)
}

// GetTransfer returns a copy of a transfer record.
func (b *Bridge) GetTransfer(id types.TransferID) (*types.CrossChainTransfer, error) {
	return b.relay.GetTransfer(id)
}

// ListPendingTransfers returns up to limit pending transfer ids.
func (b *Bridge) ListPendingTransfers(limit int) []types.TransferID {
	return b.relay.ListPending(limit)
}

// GetValidatorStats returns the reputation view for one validator.
func (b *Bridge) GetValidatorStats(id types.Identity) types.ValidatorStats {
	return b.registry.ValidatorStats(id)
}

// ChainEndpoint returns the registered endpoint reference for a chain.
func (b *Bridge) ChainEndpoint(chain types.ChainID) (string, bool) {
	return b.relay.Endpoint(chain)
}

// EventBus exposes the bus so callers can subscribe to bridge events.
func (b *Bridge) EventBus() *eventbus.EventBus { return b.bus }

func (b *Bridge) mutable() error {
	b.pauseMtx.RLock()
	defer b.pauseMtx.RUnlock()
	if b.paused {
		b.metrics.RejectedOps.Add(1)
		return types.ErrSystemPaused
	}
	return nil
}

func (b *Bridge) reject(op string, err error, keyVals ...interface{}) error {
	b.metrics.RejectedOps.Add(1)
	b.logger.Debug("rejected "+op, append(keyVals, "err", err)...)
	return err
}

func (b *Bridge) finalized(actor types.Identity, id types.ProofID) {
	b.metrics.ProofsFinalized.Add(1)
	b.metrics.PendingProofs.Set(float64(b.ledger.PendingCount()))
	b.logger.Info("proof finalized", "proof_id", id)
	b.emit(types.EventProofFinalized, id.String(), actor)
}

func (b *Bridge) persistProof(proof *types.DataProof) {
	if err := b.store.SaveProof(proof); err != nil {
		b.logger.Error("failed to persist proof", "proof_id", proof.ID, "err", err)
	}
}

func (b *Bridge) persistProofByID(id types.ProofID) {
	proof, err := b.ledger.GetProof(id)
	if err != nil {
		b.logger.Error("failed to read back proof for persistence", "proof_id", id, "err", err)
		return
	}
	b.persistProof(proof)
}

func (b *Bridge) persistTransfer(transfer *types.CrossChainTransfer) {
	if err := b.store.SaveTransfer(transfer); err != nil {
		b.logger.Error("failed to persist transfer", "transfer_id", transfer.ID, "err", err)
	}
}

func (b *Bridge) persistTransferByID(id types.TransferID) {
	transfer, err := b.relay.GetTransfer(id)
	if err != nil {
		b.logger.Error("failed to read back transfer for persistence", "transfer_id", id, "err", err)
		return
	}
	b.persistTransfer(transfer)
}

func (b *Bridge) persistRegistry() {
	if err := b.store.SaveRegistrySnapshot(b.registry.Snapshot()); err != nil {
		b.logger.Error("failed to persist registry snapshot", "err", err)
	}
}

func (b *Bridge) emit(kind types.EventKind, ref string, actor types.Identity) {
	event := types.NewEvent(kind, ref, actor, b.timeNow())
	if err := b.store.AppendEvent(event); err != nil {
		b.logger.Error("failed to append audit event", "kind", kind, "err", err)
	}
	b.bus.Publish(event)
}
