package database

import (
	"context"
	"fmt"
	"sync"
)

var (
	providerMu      sync.RWMutex
	postgresRecords func() RecordWriter
	legacyRecords   func() RecordWriter
)

// RegisterPostgresBackend registers the PostgreSQL record repository.
// This is called by the command layer to avoid import cycles.
func RegisterPostgresBackend(records func() RecordWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresRecords = records
}

// RegisterLegacyBackend registers the MariaDB monitoring database. When set
// it takes precedence over PostgreSQL for record access.
func RegisterLegacyBackend(records func() RecordWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	legacyRecords = records
}

// ResetBackends clears all registrations.
func ResetBackends() {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresRecords = nil
	legacyRecords = nil
}

// IsInitialized returns whether any record backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresRecords != nil || legacyRecords != nil
}

// BackendName reports which backend serves records: "mariadb", "postgres" or "".
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	switch {
	case legacyRecords != nil:
		return "mariadb"
	case postgresRecords != nil:
		return "postgres"
	default:
		return ""
	}
}

// GetRecordReader returns a RecordReader from the active backend
func GetRecordReader(ctx context.Context) (RecordReader, error) {
	return GetRecordWriter(ctx)
}

// GetRecordWriter returns a RecordWriter from the active backend
func GetRecordWriter(ctx context.Context) (RecordWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if legacyRecords != nil {
		return legacyRecords(), nil
	}
	if postgresRecords != nil {
		return postgresRecords(), nil
	}
	return nil, fmt.Errorf("record backend not initialized: DATABASE_URL or MARIADB_DSN is required")
}
