// Package store provides durable storage for artifact relationships and
// sync run records.
//
// Two tables:
//   - relationships: source/target artifact pairs. The engine looks these
//     up by source key to address target-side actions.
//   - runs: one row per processed (event, route) pair with the fired rule
//     names, the CBOR-encoded action list and warnings, and the plan digest.
//
// All ordering uses seq (insertion order), never timestamps. Writes are
// idempotent by id.
//
// # Database Configuration
//
// SQLite (default, via mattn/go-sqlite3):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// PostgreSQL (via lib/pq) uses schema_postgres.sql and "$n" placeholders.
package store
