// Package storage defines the persistence contract for Korrosync and its
// Badger-backed implementation.
//
// The rest of the system programs against the Store interface; BadgerStore
// is its production implementation over an embedded, transactional
// key-value engine. Every mutating operation runs in one write
// transaction and every read in one snapshot-consistent read transaction,
// so callers never observe a partial multi-key write. Engine faults are
// mapped into the domain error taxonomy and never leak across the Store
// boundary.
package storage
