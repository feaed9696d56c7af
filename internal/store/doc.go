// Package store persists episode dedup state and the run ledger in SQLite.
package store
