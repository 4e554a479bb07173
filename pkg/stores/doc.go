// Package stores provides the persistence layer for CloudWarden run
// history. It includes SQLite-based storage with WAL mode, connection
// pooling, embedded schema migrations, and CRUD operations for runs,
// per-policy results, and recorded schema violations.
package stores
