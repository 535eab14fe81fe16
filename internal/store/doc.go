// Package store provides the SQLite-backed build cache for glia.
//
// The cache records the last known content hash of every package
// (mod_hashes, keyed by package identity hash) and of every catalogue
// (cat_hashes, keyed by catalogue name, where the hash also folds in the
// toolchain configuration). A freshness check recomputes the current hash
// and compares; absence of a record is staleness, never an error.
//
// # Concurrency
//
// Processes coordinated by one build coordinator write through the main
// participant only. Independent glia invocations sharing a cache file are
// serialized by SQLite's file locking: each write is a single transaction
// and busy_timeout makes a second writer wait instead of failing.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The JSON form of the record ({"mod_hashes": {...}, "cat_hashes": {...}})
// is available through Export and Import.
package store
