package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harlowes/magpie/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry time.Time
	db          *sql.DB
	linkCache   map[string]*model.LinkingRecord
	dbPath      string
	cacheMutex  sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single
	// connection gives us key-level write atomicity for free.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:        db,
		dbPath:    dbPath,
		linkCache: make(map[string]*model.LinkingRecord),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) cacheRecord(record *model.LinkingRecord) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	copied := *record
	s.linkCache[record.SourceID] = &copied
}

func (s *SQLiteStorage) cachedRecord(sourceID string) *model.LinkingRecord {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	if rec, ok := s.linkCache[sourceID]; ok {
		copied := *rec
		return &copied
	}
	return nil
}

func (s *SQLiteStorage) evictRecord(sourceID string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	delete(s.linkCache, sourceID)
}

func (s *SQLiteStorage) clearCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.linkCache = make(map[string]*model.LinkingRecord)
}
