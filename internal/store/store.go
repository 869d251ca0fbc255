// Package store persists bridge state: proof records, compliance checks,
// transfers, the registry snapshot, the chain endpoint table, and the audit
// event sequence. The coordinator holds authoritative state in memory and
// writes through after every committed mutation; on restart the node
// rehydrates from here.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/hdbridge/hdbridge/types"
)

// Store is a thin typed layer over a tm-db key-value database.
//
// NOTE: Store methods panic if they encounter errors deserializing loaded
// data, indicating probable corruption on disk.
type Store struct {
	db dbm.DB

	seqMtx    sync.Mutex
	eventSeq  uint64
	seqLoaded bool
}

// New returns a store over the given database.
func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// SaveProof writes (or overwrites) a proof record.
func (s *Store) SaveProof(proof *types.DataProof) error {
	bz, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("marshaling proof %v: %w", proof.ID, err)
	}
	return s.db.SetSync(proofKey(proof.ID), bz)
}

// LoadProofs returns every persisted proof record.
func (s *Store) LoadProofs() ([]*types.DataProof, error) {
	var proofs []*types.DataProof
	err := s.iteratePrefix(prefixProof, func(value []byte) error {
		proof := new(types.DataProof)
		if err := json.Unmarshal(value, proof); err != nil {
			panic(fmt.Sprintf("corrupt proof record: %v", err))
		}
		proofs = append(proofs, proof)
		return nil
	})
	return proofs, err
}

// SaveComplianceCheck writes the latest review for a proof, overwriting any
// prior one.
func (s *Store) SaveComplianceCheck(check *types.ComplianceCheck) error {
	bz, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("marshaling compliance check %v: %w", check.ProofID, err)
	}
	return s.db.SetSync(complianceKey(check.ProofID), bz)
}

// LoadComplianceChecks returns every persisted compliance check.
func (s *Store) LoadComplianceChecks() ([]*types.ComplianceCheck, error) {
	var checks []*types.ComplianceCheck
	err := s.iteratePrefix(prefixCompliance, func(value []byte) error {
		check := new(types.ComplianceCheck)
		if err := json.Unmarshal(value, check); err != nil {
			panic(fmt.Sprintf("corrupt compliance check: %v", err))
		}
		checks = append(checks, check)
		return nil
	})
	return checks, err
}

// SaveTransfer writes (or overwrites) a transfer record.
func (s *Store) SaveTransfer(transfer *types.CrossChainTransfer) error {
	bz, err := json.Marshal(transfer)
	if err != nil {
		return fmt.Errorf("marshaling transfer %v: %w", transfer.ID, err)
	}
	return s.db.SetSync(transferKey(transfer.ID), bz)
}

// LoadTransfers returns every persisted transfer record.
func (s *Store) LoadTransfers() ([]*types.CrossChainTransfer, error) {
	var transfers []*types.CrossChainTransfer
	err := s.iteratePrefix(prefixTransfer, func(value []byte) error {
		transfer := new(types.CrossChainTransfer)
		if err := json.Unmarshal(value, transfer); err != nil {
			panic(fmt.Sprintf("corrupt transfer record: %v", err))
		}
		transfers = append(transfers, transfer)
		return nil
	})
	return transfers, err
}

// SaveRegistrySnapshot writes the registry state blob.
func (s *Store) SaveRegistrySnapshot(snap interface{}) error {
	bz, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling registry snapshot: %w", err)
	}
	return s.db.SetSync(registryKey(), bz)
}

// LoadRegistrySnapshot reads the registry state blob into out. It reports
// false when no snapshot has been written yet.
func (s *Store) LoadRegistrySnapshot(out interface{}) (bool, error) {
	bz, err := s.db.Get(registryKey())
	if err != nil {
		return false, err
	}
	if len(bz) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(bz, out); err != nil {
		panic(fmt.Sprintf("corrupt registry snapshot: %v", err))
	}
	return true, nil
}

// SaveEndpoints writes the chain endpoint table.
func (s *Store) SaveEndpoints(endpoints map[types.ChainID]string) error {
	bz, err := json.Marshal(endpoints)
	if err != nil {
		return fmt.Errorf("marshaling endpoints: %w", err)
	}
	return s.db.SetSync(endpointsKey(), bz)
}

// LoadEndpoints reads the chain endpoint table, empty when never written.
func (s *Store) LoadEndpoints() (map[types.ChainID]string, error) {
	bz, err := s.db.Get(endpointsKey())
	if err != nil {
		return nil, err
	}
	endpoints := make(map[types.ChainID]string)
	if len(bz) == 0 {
		return endpoints, nil
	}
	if err := json.Unmarshal(bz, &endpoints); err != nil {
		panic(fmt.Sprintf("corrupt endpoint table: %v", err))
	}
	return endpoints, nil
}

// AppendEvent appends an audit event under the next sequence number. The
// sequence is recovered from disk on first use and cached afterwards.
func (s *Store) AppendEvent(event types.Event) error {
	s.seqMtx.Lock()
	defer s.seqMtx.Unlock()

	if !s.seqLoaded {
		seq, err := s.lastEventSeq()
		if err != nil {
			return err
		}
		s.eventSeq = seq
		s.seqLoaded = true
	}

	bz, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := s.db.SetSync(eventKey(s.eventSeq+1), bz); err != nil {
		return err
	}
	s.eventSeq++
	return nil
}

// IterateEvents calls fn for each audit event in sequence order until fn
// returns false or the sequence is exhausted.
func (s *Store) IterateEvents(fn func(seq uint64, event types.Event) bool) error {
	start, end := prefixRange(prefixEvent)
	iter, err := s.db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		seq, err := decodeEventKey(iter.Key())
		if err != nil {
			panic(fmt.Sprintf("corrupt event key: %v", err))
		}
		var event types.Event
		if err := json.Unmarshal(iter.Value(), &event); err != nil {
			panic(fmt.Sprintf("corrupt event record: %v", err))
		}
		if !fn(seq, event) {
			break
		}
	}
	return iter.Error()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) lastEventSeq() (uint64, error) {
	start, end := prefixRange(prefixEvent)
	iter, err := s.db.ReverseIterator(start, end)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if iter.Valid() {
		return decodeEventKey(iter.Key())
	}
	return 0, iter.Error()
}

func (s *Store) iteratePrefix(prefix int64, fn func(value []byte) error) error {
	start, end := prefixRange(prefix)
	iter, err := s.db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// key prefixes; unique across the bridge db
const (
	prefixProof      = int64(0)
	prefixCompliance = int64(1)
	prefixTransfer   = int64(2)
	prefixRegistry   = int64(3)
	prefixEndpoints  = int64(4)
	prefixEvent      = int64(5)
)

func proofKey(id types.ProofID) []byte {
	key, err := orderedcode.Append(nil, prefixProof, string(id[:]))
	if err != nil {
		panic(err)
	}
	return key
}

func complianceKey(id types.ProofID) []byte {
	key, err := orderedcode.Append(nil, prefixCompliance, string(id[:]))
	if err != nil {
		panic(err)
	}
	return key
}

func transferKey(id types.TransferID) []byte {
	key, err := orderedcode.Append(nil, prefixTransfer, string(id[:]))
	if err != nil {
		panic(err)
	}
	return key
}

func registryKey() []byte {
	key, err := orderedcode.Append(nil, prefixRegistry)
	if err != nil {
		panic(err)
	}
	return key
}

func endpointsKey() []byte {
	key, err := orderedcode.Append(nil, prefixEndpoints)
	if err != nil {
		panic(err)
	}
	return key
}

func eventKey(seq uint64) []byte {
	key, err := orderedcode.Append(nil, prefixEvent, seq)
	if err != nil {
		panic(err)
	}
	return key
}

func decodeEventKey(key []byte) (uint64, error) {
	var prefix int64
	var seq uint64
	remaining, err := orderedcode.Parse(string(key), &prefix, &seq)
	if err != nil {
		return 0, err
	}
	if len(remaining) != 0 {
		return 0, fmt.Errorf("unexpected remainder in event key: %q", remaining)
	}
	if prefix != prefixEvent {
		return 0, fmt.Errorf("incorrect prefix. Expected %v, got %v", prefixEvent, prefix)
	}
	return seq, nil
}

func prefixRange(prefix int64) (start, end []byte) {
	var err error
	if start, err = orderedcode.Append(nil, prefix); err != nil {
		panic(err)
	}
	if end, err = orderedcode.Append(nil, prefix+1); err != nil {
		panic(err)
	}
	return start, end
}
