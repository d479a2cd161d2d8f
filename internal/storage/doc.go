// Package storage provides connection.Store backends.
//
// Three adapters exist:
//   - MemoryStore: process-local map, development and tests
//   - RedisStore: one hash per record, shared by a gateway fleet
//   - PostgresStore: one row per record, durable storage
//
// All of them key records by connection id under a configured
// namespace. Expiry enforcement stays with the caller; stores only
// persist the expiry instant.
package storage
