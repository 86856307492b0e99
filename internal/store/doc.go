// Package store provides the SQLite-backed reconciliation journal.
//
// Every reconciliation run is appended as one row in runs plus one row per
// dependency outcome in outcomes. The journal is history only: the manifest
// stays the source of truth and nothing is read back into a reconciliation.
//
// # Deterministic Query Results
//
//   - Runs are listed newest first: ORDER BY started_at DESC, id DESC COLLATE BINARY
//   - Outcomes keep report order: ORDER BY seq ASC
//
// # Connection Options
//
// Every connection opens with journal_mode=WAL, synchronous=NORMAL,
// busy_timeout=5000 and foreign_keys=on. Older journal files are upgraded
// on Open through PRAGMA user_version.
package store
