package types

import (
	"encoding/json"
	"sort"
)

// VoteSet accumulates at most one vote per voter. It is the quorum primitive
// shared by the proof ledger (approve/reject validator votes) and the
// transfer coordinator (relayer confirmations, which are always approvals).
//
// Only approving votes count toward quorum. A rejection consumes the voter's
// one-vote allowance without contributing; there is no mechanism by which a
// rejection lowers the approve count.
//
// VoteSet is not goroutine safe. Callers hold the owning record's lock; see
// the ledger and relay packages.
type VoteSet struct {
	votes        map[Identity]bool
	approveCount int
}

// NewVoteSet returns an empty vote set.
func NewVoteSet() *VoteSet {
	return &VoteSet{votes: make(map[Identity]bool)}
}

// Add records the voter's vote. It reports false, without mutating the set,
// if the voter has already voted (with either value).
func (vs *VoteSet) Add(voter Identity, approve bool) bool {
	if _, ok := vs.votes[voter]; ok {
		return false
	}
	vs.votes[voter] = approve
	if approve {
		vs.approveCount++
	}
	return true
}

// HasVoted reports whether the voter has already used their vote allowance.
func (vs *VoteSet) HasVoted(voter Identity) bool {
	_, ok := vs.votes[voter]
	return ok
}

// ApproveCount returns the cached count of approving votes.
func (vs *VoteSet) ApproveCount() int { return vs.approveCount }

// Size returns the total number of votes cast, approvals and rejections.
func (vs *VoteSet) Size() int { return len(vs.votes) }

// HasQuorum reports whether the approving votes meet the threshold.
func (vs *VoteSet) HasQuorum(threshold int) bool { return vs.approveCount >= threshold }

// Copy returns an independent copy of the vote set.
func (vs *VoteSet) Copy() *VoteSet {
	cp := &VoteSet{
		votes:        make(map[Identity]bool, len(vs.votes)),
		approveCount: vs.approveCount,
	}
	for voter, approve := range vs.votes {
		cp.votes[voter] = approve
	}
	return cp
}

// Voters returns the voter identities in lexicographic order.
func (vs *VoteSet) Voters() []Identity {
	voters := make([]Identity, 0, len(vs.votes))
	for voter := range vs.votes {
		voters = append(voters, voter)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i] < voters[j] })
	return voters
}

type voteSetJSON struct {
	Votes map[Identity]bool `json:"votes"`
}

func (vs *VoteSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(voteSetJSON{Votes: vs.votes})
}

func (vs *VoteSet) UnmarshalJSON(data []byte) error {
	var aux voteSetJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	vs.votes = aux.Votes
	if vs.votes == nil {
		vs.votes = make(map[Identity]bool)
	}
	vs.approveCount = 0
	for _, approve := range vs.votes {
		if approve {
			vs.approveCount++
		}
	}
	return nil
}
