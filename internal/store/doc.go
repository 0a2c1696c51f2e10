// Package store provides the SQLite backend.
//
// One database file holds every model:
//   - resource_meta: one row per (model, resource_id), the CAS target
//   - revisions: immutable encoded payloads, one row per revision
//   - blobs: content-addressed binary payloads shared by all models
//
// # Critical Patterns
//
// Compare-and-swap on seq
//   - Meta writes are a single INSERT ... ON CONFLICT DO NOTHING (first
//     write) or UPDATE ... WHERE seq = ? (every later write)
//   - Zero affected rows means another writer won; nothing changes
//
// Canonical indexed data
//   - indexed_data is canonical JSON TEXT produced by ir.MarshalCanonical
//   - Searches run against it through json_extract, compiled by querysql
//
// Deterministic ordering
//   - Revision lists are ordered by rowid, which an upsert preserves
//   - Search results end with resource_id ASC as the final tie breaker
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
