// Package registry tracks which identities hold which roles, which
// identities may submit proofs, and per-validator reputation. It is the
// authorization source for every other bridge component.
package registry

import (
	"sync"

	"github.com/hdbridge/hdbridge/types"
)

// Registry is an owned collection of role grants, authorized sources and
// reputation counters. All access goes through its methods; it is safe for
// concurrent use.
type Registry struct {
	mtx sync.RWMutex

	roles             map[types.Identity]types.Role
	authorizedSources map[types.Identity]struct{}
	reputation        map[types.Identity]uint64
}

// New returns a registry with the given identities pre-granted the admin
// role. At least one admin is needed to bootstrap role management.
func New(admins ...types.Identity) *Registry {
	r := &Registry{
		roles:             make(map[types.Identity]types.Role),
		authorizedSources: make(map[types.Identity]struct{}),
		reputation:        make(map[types.Identity]uint64),
	}
	for _, admin := range admins {
		r.roles[admin] |= types.RoleAdmin
	}
	return r
}

// HasRole reports whether the identity holds every role in want.
func (r *Registry) HasRole(id types.Identity, want types.Role) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.roles[id].Has(want)
}

// GrantRole grants a role to an identity. Only admins may grant roles.
// Granting an already-held role is a no-op, not an error.
func (r *Registry) GrantRole(caller, id types.Identity, role types.Role) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if !r.roles[caller].Has(types.RoleAdmin) {
		return types.ErrUnauthorized
	}
	r.roles[id] |= role
	return nil
}

// RevokeRole removes a role from an identity. Only admins may revoke roles.
// Revoking a role the identity does not hold is a no-op.
func (r *Registry) RevokeRole(caller, id types.Identity, role types.Role) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if !r.roles[caller].Has(types.RoleAdmin) {
		return types.ErrUnauthorized
	}
	r.roles[id] &^= role
	if r.roles[id] == 0 {
		delete(r.roles, id)
	}
	return nil
}

// AddAuthorizedSource permits an identity to submit proofs. Admin only;
// idempotent.
func (r *Registry) AddAuthorizedSource(caller, id types.Identity) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if !r.roles[caller].Has(types.RoleAdmin) {
		return types.ErrUnauthorized
	}
	r.authorizedSources[id] = struct{}{}
	return nil
}

// RemoveAuthorizedSource revokes an identity's submission grant. Admin only;
// idempotent.
func (r *Registry) RemoveAuthorizedSource(caller, id types.Identity) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if !r.roles[caller].Has(types.RoleAdmin) {
		return types.ErrUnauthorized
	}
	delete(r.authorizedSources, id)
	return nil
}

// IsAuthorizedSource reports whether the identity may submit proofs.
func (r *Registry) IsAuthorizedSource(id types.Identity) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.authorizedSources[id]
	return ok
}

// RecordApprovingVote bumps the validator's reputation counter. It is a side
// effect of a counted approving vote and has no observable error path.
func (r *Registry) RecordApprovingVote(id types.Identity) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.reputation[id]++
}

// ValidatorStats returns the reputation view for one validator. Unknown
// identities report zero reputation.
func (r *Registry) ValidatorStats(id types.Identity) types.ValidatorStats {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return types.ValidatorStats{Validator: id, Reputation: r.reputation[id]}
}

// Snapshot is the persisted form of the registry state.
type Snapshot struct {
	Roles             map[types.Identity]types.Role `json:"roles"`
	AuthorizedSources []types.Identity              `json:"authorized_sources"`
	Reputation        map[types.Identity]uint64     `json:"reputation"`
}

// Snapshot captures the current state for persistence.
func (r *Registry) Snapshot() Snapshot {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	snap := Snapshot{
		Roles:      make(map[types.Identity]types.Role, len(r.roles)),
		Reputation: make(map[types.Identity]uint64, len(r.reputation)),
	}
	for id, role := range r.roles {
		snap.Roles[id] = role
	}
	for id := range r.authorizedSources {
		snap.AuthorizedSources = append(snap.AuthorizedSources, id)
	}
	for id, rep := range r.reputation {
		snap.Reputation[id] = rep
	}
	return snap
}

// Restore replaces the registry state with a persisted snapshot.
func (r *Registry) Restore(snap Snapshot) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.roles = make(map[types.Identity]types.Role, len(snap.Roles))
	for id, role := range snap.Roles {
		r.roles[id] = role
	}
	r.authorizedSources = make(map[types.Identity]struct{}, len(snap.AuthorizedSources))
	for _, id := range snap.AuthorizedSources {
		r.authorizedSources[id] = struct{}{}
	}
	r.reputation = make(map[types.Identity]uint64, len(snap.Reputation))
	for id, rep := range snap.Reputation {
		r.reputation[id] = rep
	}
}
