// Package codec implements the binary layout used to persist domain
// values in the embedded store.
//
// It is the only package that understands the byte layout. Values are
// written with a leading schema version byte and length-prefixed fields;
// reads go through view types that interpret the stored buffer in place,
// so a record can be inspected inside a read transaction without an
// allocating decode pass. Materialize converts a view into an owned
// domain value when it has to outlive the transaction.
//
// The composite progress key encoding also lives here: it preserves
// lexicographic ordering matching (username, document) tuple order, which
// lets the store delete all progress for a user with a bounded prefix
// scan.
package codec
