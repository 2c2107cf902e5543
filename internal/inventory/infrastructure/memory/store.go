package memory

import (
	"context"
	"sync"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// Store is an in-memory implementation of the inventory store. It mirrors
// the Postgres semantics closely enough for service-level tests: live-row
// uniqueness, soft deletes, and all-or-nothing transactions.
type Store struct {
	mu          sync.RWMutex
	entitySeq   map[inventory.EntityKind]int64
	tagSeq      int64
	entities    map[inventory.EntityKind]map[int64]*inventory.Entity
	identifiers map[int64]*inventory.TagIdentifier

	// txMu serializes transactions so snapshot/restore stays consistent.
	txMu sync.Mutex
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		entitySeq: make(map[inventory.EntityKind]int64, 2),
		entities: map[inventory.EntityKind]map[int64]*inventory.Entity{
			inventory.KindAsset:    {},
			inventory.KindLocation: {},
		},
		identifiers: make(map[int64]*inventory.TagIdentifier),
	}
}

// Entities returns an entity repository over the store.
func (s *Store) Entities() *EntityRepository {
	return &EntityRepository{store: s}
}

// Identifiers returns an identifier repository over the store.
func (s *Store) Identifiers() *IdentifierRepository {
	return &IdentifierRepository{store: s}
}

// WithinTx runs fn atomically: state is snapshotted first and restored
// whole when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) error) error {
	_ = ctx
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s.Entities(), s.Identifiers()); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	entitySeq   map[inventory.EntityKind]int64
	tagSeq      int64
	entities    map[inventory.EntityKind]map[int64]*inventory.Entity
	identifiers map[int64]*inventory.TagIdentifier
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := storeSnapshot{
		entitySeq:   make(map[inventory.EntityKind]int64, len(s.entitySeq)),
		tagSeq:      s.tagSeq,
		entities:    make(map[inventory.EntityKind]map[int64]*inventory.Entity, len(s.entities)),
		identifiers: make(map[int64]*inventory.TagIdentifier, len(s.identifiers)),
	}
	for kind, seq := range s.entitySeq {
		snap.entitySeq[kind] = seq
	}
	for kind, byID := range s.entities {
		clone := make(map[int64]*inventory.Entity, len(byID))
		for id, entity := range byID {
			clone[id] = entity.Clone()
		}
		snap.entities[kind] = clone
	}
	for id, identifier := range s.identifiers {
		snap.identifiers[id] = identifier.Clone()
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitySeq = snap.entitySeq
	s.tagSeq = snap.tagSeq
	s.entities = snap.entities
	s.identifiers = snap.identifiers
}
