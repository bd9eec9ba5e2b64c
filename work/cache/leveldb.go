package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"hlsproxy/work/logger"
)

// LevelDBBackend persists entries in a LevelDB directory. Each value is
// stored as an 8-byte big-endian expiry (Unix milliseconds) followed by the
// payload.
type LevelDBBackend struct {
	db *leveldb.DB
}

// NewLevelDBBackend opens (creating if needed) the LevelDB directory at path.
func NewLevelDBBackend(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}

	logger.Debug("{cache/leveldb - NewLevelDBBackend} opened cache directory %s", path)
	return &LevelDBBackend{db: db}, nil
}

func (l *LevelDBBackend) Get(_ context.Context, key string) (string, bool, error) {
	data, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if len(data) < 8 {
		return "", false, fmt.Errorf("corrupt entry for %s", key)
	}

	expiresAt := int64(binary.BigEndian.Uint64(data[:8]))
	if time.Now().UnixMilli() > expiresAt {
		if err := l.db.Delete([]byte(key), nil); err != nil {
			logger.Debug("{cache/leveldb - Get} failed to delete expired entry %s: %v", key, err)
		}
		return "", false, nil
	}

	return string(data[8:]), true, nil
}

func (l *LevelDBBackend) Put(_ context.Context, key, value string, ttl time.Duration) error {
	data := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(data[:8], uint64(time.Now().Add(ttl).UnixMilli()))
	copy(data[8:], value)
	return l.db.Put([]byte(key), data, nil)
}

func (l *LevelDBBackend) Close() error {
	return l.db.Close()
}
