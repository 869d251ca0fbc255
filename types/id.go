package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ProofID is the caller-supplied, globally unique identifier of a data proof.
type ProofID [32]byte

// TransferID is the caller-supplied, globally unique identifier of a
// cross-chain transfer.
type TransferID [32]byte

// DataHash is the content fingerprint of the off-ledger data being attested.
// The data itself never enters the coordinator.
type DataHash [32]byte

// ChainID identifies a ledger domain (e.g. "1", "137").
type ChainID string

// Identity is an opaque caller identity. Authentication and signature
// verification happen in the collaborating identity layer; the coordinator
// only cares about which roles an identity holds.
type Identity string

func (id ProofID) String() string    { return strings.ToUpper(hex.EncodeToString(id[:])) }
func (id TransferID) String() string { return strings.ToUpper(hex.EncodeToString(id[:])) }
func (h DataHash) String() string    { return strings.ToUpper(hex.EncodeToString(h[:])) }

// IsZero reports whether the hash is the zero value, which is rejected on
// submission.
func (h DataHash) IsZero() bool { return h == DataHash{} }

func (id ProofID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id TransferID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (h DataHash) MarshalText() ([]byte, error)    { return []byte(h.String()), nil }

func (id *ProofID) UnmarshalText(text []byte) error    { return decode32("proof id", id[:], text) }
func (id *TransferID) UnmarshalText(text []byte) error { return decode32("transfer id", id[:], text) }
func (h *DataHash) UnmarshalText(text []byte) error    { return decode32("data hash", h[:], text) }

func decode32(what string, dst, text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decoding %s: %w", what, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decoding %s: expected 32 bytes, got %d", what, len(raw))
	}
	copy(dst, raw)
	return nil
}
