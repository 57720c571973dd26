// Package store persists deposits, journals, and AU containers in
// SQLite. It is the only shared mutable resource in the system; the
// pipeline writes through it either one record at a time or via a
// BatchWriter that bounds transaction size during sweeps.
package store
