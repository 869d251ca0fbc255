package types

import "errors"

// The coordinator's error taxonomy. All of these are terminal for the
// operation that produced them; only ErrSystemPaused is worth retrying, after
// the caller observes an unpause event. No partial state is committed on any
// error path.
var (
	// ErrUnauthorized is returned when the caller lacks the role an
	// operation requires.
	ErrUnauthorized = errors.New("caller lacks required role")

	// ErrNotFound is returned when no proof or transfer exists for an id.
	ErrNotFound = errors.New("unknown id")

	// ErrDuplicateProof is returned when a submitted proof id already exists.
	ErrDuplicateProof = errors.New("proof id already exists")

	// ErrDuplicateTransfer is returned when an initiated transfer id already
	// exists.
	ErrDuplicateTransfer = errors.New("transfer id already exists")

	// ErrDuplicateVote is returned when a validator votes twice on the same
	// proof, regardless of the vote value.
	ErrDuplicateVote = errors.New("validator already voted on this proof")

	// ErrDuplicateConfirmation is returned when a relayer confirms the same
	// still-pending transfer twice.
	ErrDuplicateConfirmation = errors.New("relayer already confirmed this transfer")

	// ErrAlreadyFinalized is returned for any mutation of a finalized proof.
	ErrAlreadyFinalized = errors.New("proof already finalized")

	// ErrAlreadyCompleted is returned for mutations of a completed transfer
	// other than surplus confirmations, which are accepted as no-ops.
	ErrAlreadyCompleted = errors.New("transfer already completed")

	// ErrInvalidHash is returned when a submission carries the zero data hash.
	ErrInvalidHash = errors.New("data hash is zero")

	// ErrSameChain is returned when source and target chains are equal.
	ErrSameChain = errors.New("source and target chains must differ")

	// ErrUnsupportedChain is returned when a transfer names a chain with no
	// registered endpoint.
	ErrUnsupportedChain = errors.New("chain has no registered endpoint")

	// ErrWindowExpired is returned for votes cast after the validation window
	// has closed.
	ErrWindowExpired = errors.New("validation window expired")

	// ErrSystemPaused is returned for all mutating operations while the admin
	// pause override is active. Reads keep working.
	ErrSystemPaused = errors.New("system is paused")
)
