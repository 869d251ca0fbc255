package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdbridge/hdbridge/internal/registry"
	"github.com/hdbridge/hdbridge/types"
)

const (
	admin    = types.Identity("admin-1")
	source   = types.Identity("hospital-a")
	reviewer = types.Identity("reviewer-1")
)

// testClock is a controllable time source for window tests.
type testClock struct {
	mtx sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: time.Now()} }

func (c *testClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*Ledger, *registry.Registry, *testClock) {
	t.Helper()
	reg := registry.New(admin)
	require.NoError(t, reg.AddAuthorizedSource(admin, source))
	for i := 1; i <= 4; i++ {
		val := types.Identity(fmt.Sprintf("val-%d", i))
		require.NoError(t, reg.GrantRole(admin, val, types.RoleValidator))
	}
	require.NoError(t, reg.GrantRole(admin, reviewer, types.RoleComplianceReviewer))

	clock := newTestClock()
	l := New(reg, 3, 24*time.Hour, WithTimeSource(clock.Now))
	return l, reg, clock
}

func pid(b byte) types.ProofID {
	var id types.ProofID
	id[0] = b
	return id
}

func hash(b byte) types.DataHash {
	var h types.DataHash
	h[0] = b
	return h
}

func submit(t *testing.T, l *Ledger, b byte) types.ProofID {
	t.Helper()
	id := pid(b)
	_, err := l.Submit(source, id, hash(b), "1", "137", "lab_result", "")
	require.NoError(t, err)
	return id
}

func TestSubmitValidation(t *testing.T) {
	l, _, _ := setup(t)

	_, err := l.Submit("rando", pid(1), hash(1), "1", "137", "lab_result", "")
	require.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = l.Submit(source, pid(1), types.DataHash{}, "1", "137", "lab_result", "")
	require.ErrorIs(t, err, types.ErrInvalidHash)

	_, err = l.Submit(source, pid(1), hash(1), "137", "137", "lab_result", "")
	require.ErrorIs(t, err, types.ErrSameChain)

	proof, err := l.Submit(source, pid(1), hash(1), "1", "137", "lab_result", "fabric:tx-9")
	require.NoError(t, err)
	assert.Equal(t, types.ComplianceUnreviewed, proof.ComplianceStatus)
	assert.Equal(t, 0, proof.Votes.Size())
	assert.False(t, proof.IsFinalized)
	assert.Equal(t, "fabric:tx-9", proof.ExternalReference)

	_, err = l.Submit(source, pid(1), hash(2), "1", "137", "lab_result", "")
	require.ErrorIs(t, err, types.ErrDuplicateProof)

	assert.Equal(t, []types.ProofID{pid(1)}, l.ListPending(0))
}

// The order of quorum and compliance does not matter; finalization happens
// on whichever call completes the predicate last.
func TestFinalizesOnLastVote(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 1)

	fin, err := l.CastVote("val-1", id, true)
	require.NoError(t, err)
	assert.False(t, fin)
	fin, err = l.CastVote("val-2", id, true)
	require.NoError(t, err)
	assert.False(t, fin)

	// compliance passes but approveCount is still 2
	fin, err = l.ReviewCompliance(reviewer, id, true, true, true, nil)
	require.NoError(t, err)
	assert.False(t, fin)

	proof, err := l.GetProof(id)
	require.NoError(t, err)
	assert.Equal(t, types.ComplianceCompliant, proof.ComplianceStatus)
	assert.False(t, proof.IsFinalized)

	// the 3rd approval completes the predicate
	fin, err = l.CastVote("val-3", id, true)
	require.NoError(t, err)
	assert.True(t, fin)

	proof, err = l.GetProof(id)
	require.NoError(t, err)
	assert.True(t, proof.IsFinalized)
	assert.Empty(t, l.ListPending(0))
	assert.Equal(t, []types.ProofID{id}, l.ListFinalized(0))
}

func TestFinalizesOnReview(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 1)

	for _, val := range []types.Identity{"val-1", "val-2", "val-3"} {
		fin, err := l.CastVote(val, id, true)
		require.NoError(t, err)
		assert.False(t, fin, "quorum without compliance must not finalize")
	}

	fin, err := l.ReviewCompliance(reviewer, id, true, true, false, nil)
	require.NoError(t, err)
	assert.True(t, fin, "review completing the predicate finalizes")
}

func TestComplianceGateBlocksFinalization(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 2)

	fin, err := l.ReviewCompliance(reviewer, id, false, true, true, nil)
	require.NoError(t, err)
	assert.False(t, fin)

	proof, err := l.GetProof(id)
	require.NoError(t, err)
	assert.Equal(t, types.ComplianceNonCompliant, proof.ComplianceStatus)

	for _, val := range []types.Identity{"val-1", "val-2", "val-3"} {
		fin, err := l.CastVote(val, id, true)
		require.NoError(t, err)
		assert.False(t, fin)
	}

	proof, err = l.GetProof(id)
	require.NoError(t, err)
	assert.False(t, proof.IsFinalized, "non-compliant proof stays pending with full quorum")
	assert.Equal(t, []types.ProofID{id}, l.ListPending(0))
}

func TestReReviewOverwrites(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 3)

	_, err := l.ReviewCompliance(reviewer, id, true, true, true, []string{"phi exposed in metadata"})
	require.NoError(t, err)

	check, err := l.GetComplianceCheck(id)
	require.NoError(t, err)
	assert.False(t, check.IsCompliant())

	// last review wins
	fin, err := l.ReviewCompliance(reviewer, id, true, true, true, nil)
	require.NoError(t, err)
	assert.False(t, fin)

	check, err = l.GetComplianceCheck(id)
	require.NoError(t, err)
	assert.True(t, check.IsCompliant())
	assert.Empty(t, check.Violations)
}

func TestDuplicateVote(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 4)

	fin, err := l.CastVote("val-1", id, true)
	require.NoError(t, err)
	assert.False(t, fin)

	before, err := l.GetProof(id)
	require.NoError(t, err)

	_, err = l.CastVote("val-1", id, true)
	require.ErrorIs(t, err, types.ErrDuplicateVote)
	_, err = l.CastVote("val-1", id, false)
	require.ErrorIs(t, err, types.ErrDuplicateVote)

	after, err := l.GetProof(id)
	require.NoError(t, err)
	assert.Equal(t, before.Votes.ApproveCount(), after.Votes.ApproveCount())
	assert.Equal(t, before.Votes.Size(), after.Votes.Size())
}

func TestRejectionsConsumeAllowanceOnly(t *testing.T) {
	l, reg, _ := setup(t)
	id := submit(t, l, 5)

	fin, err := l.CastVote("val-1", id, false)
	require.NoError(t, err)
	assert.False(t, fin)

	proof, err := l.GetProof(id)
	require.NoError(t, err)
	assert.Equal(t, 0, proof.Votes.ApproveCount())
	assert.Equal(t, 1, proof.Votes.Size())

	// a rejection earns no reputation
	assert.EqualValues(t, 0, reg.ValidatorStats("val-1").Reputation)

	// and the rejecting validator cannot vote again
	_, err = l.CastVote("val-1", id, true)
	require.ErrorIs(t, err, types.ErrDuplicateVote)
}

func TestValidationWindow(t *testing.T) {
	l, _, clock := setup(t)
	id := submit(t, l, 6)

	_, err := l.CastVote("val-1", id, true)
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	_, err = l.CastVote("val-2", id, true)
	require.ErrorIs(t, err, types.ErrWindowExpired)

	// the proof stays pending in whatever state it had at the deadline
	proof, err := l.GetProof(id)
	require.NoError(t, err)
	assert.False(t, proof.IsFinalized)
	assert.Equal(t, 1, proof.Votes.ApproveCount())
	assert.Equal(t, []types.ProofID{id}, l.ListPending(0))

	// reviews are not window-bound, but cannot finalize without quorum
	fin, err := l.ReviewCompliance(reviewer, id, true, true, true, nil)
	require.NoError(t, err)
	assert.False(t, fin)
}

func TestFinalizedIsTerminal(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 7)

	_, err := l.ReviewCompliance(reviewer, id, true, true, true, nil)
	require.NoError(t, err)
	for _, val := range []types.Identity{"val-1", "val-2", "val-3"} {
		_, err := l.CastVote(val, id, true)
		require.NoError(t, err)
	}

	proof, err := l.GetProof(id)
	require.NoError(t, err)
	require.True(t, proof.IsFinalized)

	_, err = l.CastVote("val-4", id, true)
	require.ErrorIs(t, err, types.ErrAlreadyFinalized)
	_, err = l.ReviewCompliance(reviewer, id, false, false, false, []string{"late"})
	require.ErrorIs(t, err, types.ErrAlreadyFinalized)

	// the record is unchanged and stays in the finalized index
	after, err := l.GetProof(id)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Votes.ApproveCount())
	assert.Equal(t, types.ComplianceCompliant, after.ComplianceStatus)
	assert.Equal(t, []types.ProofID{id}, l.ListFinalized(0))
	assert.Empty(t, l.ListPending(0))
}

func TestNotFound(t *testing.T) {
	l, _, _ := setup(t)

	_, err := l.CastVote("val-1", pid(99), true)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = l.ReviewCompliance(reviewer, pid(99), true, true, true, nil)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = l.GetProof(pid(99))
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = l.GetComplianceCheck(pid(99))
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestRoleChecks(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 8)

	_, err := l.CastVote(reviewer, id, true)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = l.ReviewCompliance("val-1", id, true, true, true, nil)
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestListPendingLimit(t *testing.T) {
	l, _, _ := setup(t)
	for b := byte(1); b <= 5; b++ {
		submit(t, l, b)
	}

	assert.Len(t, l.ListPending(3), 3)
	assert.Len(t, l.ListPending(0), 5)
	assert.Equal(t, 5, l.PendingCount())
}

// Finalizing a proof from the middle of the pending index must not leave a
// gap: the last entry is swapped into its position.
func TestPendingIndexSwapAndPop(t *testing.T) {
	l, _, _ := setup(t)
	for b := byte(1); b <= 3; b++ {
		submit(t, l, b)
	}

	mid := pid(2)
	_, err := l.ReviewCompliance(reviewer, mid, true, true, true, nil)
	require.NoError(t, err)
	for _, val := range []types.Identity{"val-1", "val-2", "val-3"} {
		_, err := l.CastVote(val, mid, true)
		require.NoError(t, err)
	}

	pending := l.ListPending(0)
	assert.ElementsMatch(t, []types.ProofID{pid(1), pid(3)}, pending)
	assert.Equal(t, []types.ProofID{mid}, l.ListFinalized(0))
}

func TestReputationOnlyForApprovals(t *testing.T) {
	l, reg, _ := setup(t)
	id := submit(t, l, 9)

	_, err := l.CastVote("val-1", id, true)
	require.NoError(t, err)
	_, err = l.CastVote("val-2", id, false)
	require.NoError(t, err)

	assert.EqualValues(t, 1, reg.ValidatorStats("val-1").Reputation)
	assert.EqualValues(t, 0, reg.ValidatorStats("val-2").Reputation)
}

func TestRestoreRebuildsIndexes(t *testing.T) {
	l, reg, _ := setup(t)
	idA := submit(t, l, 1)
	idB := submit(t, l, 2)

	_, err := l.ReviewCompliance(reviewer, idA, true, true, true, nil)
	require.NoError(t, err)
	for _, val := range []types.Identity{"val-1", "val-2", "val-3"} {
		_, err := l.CastVote(val, idA, true)
		require.NoError(t, err)
	}

	proofA, err := l.GetProof(idA)
	require.NoError(t, err)
	proofB, err := l.GetProof(idB)
	require.NoError(t, err)
	checkA, err := l.GetComplianceCheck(idA)
	require.NoError(t, err)

	restored := New(reg, 3, 24*time.Hour)
	restored.Restore(
		[]*types.DataProof{proofB, proofA},
		[]*types.ComplianceCheck{checkA},
	)

	assert.Equal(t, []types.ProofID{idB}, restored.ListPending(0))
	assert.Equal(t, []types.ProofID{idA}, restored.ListFinalized(0))

	gotCheck, err := restored.GetComplianceCheck(idA)
	require.NoError(t, err)
	assert.True(t, gotCheck.IsCompliant())

	_, err = restored.CastVote("val-4", idA, true)
	require.ErrorIs(t, err, types.ErrAlreadyFinalized)
}

// Concurrent duplicate votes must serialize: exactly one attempt wins.
func TestConcurrentDuplicateVotes(t *testing.T) {
	l, _, _ := setup(t)
	id := submit(t, l, 10)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.CastVote("val-1", id, true)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case err == types.ErrDuplicateVote:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, dup)

	proof, err := l.GetProof(id)
	require.NoError(t, err)
	assert.Equal(t, 1, proof.Votes.ApproveCount())
}

// Votes on different proofs are independent and may run in parallel.
func TestConcurrentVotesAcrossProofs(t *testing.T) {
	l, _, _ := setup(t)

	const n = 8
	ids := make([]types.ProofID, n)
	for i := 0; i < n; i++ {
		ids[i] = submit(t, l, byte(i+1))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, val := range []types.Identity{"val-1", "val-2", "val-3"} {
			wg.Add(1)
			go func(id types.ProofID, val types.Identity) {
				defer wg.Done()
				_, err := l.CastVote(val, id, true)
				require.NoError(t, err)
			}(ids[i], val)
		}
	}
	wg.Wait()

	for _, id := range ids {
		proof, err := l.GetProof(id)
		require.NoError(t, err)
		assert.Equal(t, 3, proof.Votes.ApproveCount())
	}
}
