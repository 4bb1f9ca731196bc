// Package ledger keeps the append-only history of plugin registrations and
// removals. Entries are written by an observer attached to the registry and
// stored in memory or in a SQL database (MySQL, PostgreSQL or SQLite) whose
// schema is managed by the embedded migrations under deploy/migrations.
package ledger
