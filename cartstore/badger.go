package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Value kinds stored in the first byte of every badger value
const (
	kindHash   byte = 'h'
	kindString byte = 's'
)

var errWrongType = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

// BadgerStore keeps carts in an embedded badger database. Each command runs
// in its own badger transaction, retried on write conflicts, which gives the
// same per-key atomicity as the Redis commands it mirrors.
type BadgerStore struct {
	db *badger.DB

	mu         sync.Mutex
	cursors    map[uint64][]byte
	lastCursor uint64
}

// OpenBadger opens (or creates) the database under dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string, logger zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger: logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, wrap(err, "Failed to open cart database")
	}
	return &BadgerStore{db: db, cursors: make(map[uint64][]byte)}, nil
}

func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func readValue(txn *badger.Txn, key string) (byte, []byte, bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, nil, false, err
	}
	if len(raw) == 0 {
		return 0, nil, false, fmt.Errorf("corrupt value at %q", key)
	}
	return raw[0], raw[1:], true, nil
}

func readHash(txn *badger.Txn, key string) (map[string]string, error) {
	kind, body, found, err := readValue(txn, key)
	if err != nil || !found {
		return map[string]string{}, err
	}
	if kind != kindHash {
		return nil, errWrongType
	}
	fields := map[string]string{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func writeHash(txn *badger.Txn, key string, fields map[string]string) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), append([]byte{kindHash}, body...))
}

func readInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("value is not an integer")
	}
	return n, nil
}

func (s *BadgerStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		current, err := readHash(txn, key)
		if err != nil {
			return err
		}
		for field, value := range fields {
			current[field] = value
		}
		return writeHash(txn, key, current)
	})
	return wrap(err, "Failed to write cart entry")
}

func (s *BadgerStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var fields map[string]string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		fields, err = readHash(txn, key)
		return err
	})
	return fields, wrap(err, "Failed to read cart entry")
}

func (s *BadgerStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var result int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		current, err := readHash(txn, key)
		if err != nil {
			return err
		}
		n, err := readInt(current[field])
		if err != nil {
			return err
		}
		result = n + delta
		current[field] = strconv.FormatInt(result, 10)
		return writeHash(txn, key, current)
	})
	return result, wrap(err, "Failed to update cart entry")
}

func (s *BadgerStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var result int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		kind, body, found, err := readValue(txn, key)
		if err != nil {
			return err
		}
		var n int64
		if found {
			if kind != kindString {
				return errWrongType
			}
			if n, err = readInt(string(body)); err != nil {
				return err
			}
		}
		result = n + delta
		return txn.Set([]byte(key), append([]byte{kindString}, strconv.FormatInt(result, 10)...))
	})
	return result, wrap(err, "Failed to update cart total")
}

func (s *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		kind, body, ok, err := readValue(txn, key)
		if err != nil || !ok {
			return err
		}
		if kind != kindString {
			return errWrongType
		}
		value, found = string(body), true
		return nil
	})
	if err != nil {
		return "", false, wrap(err, "Failed to read cart total")
	}
	return value, found, nil
}

// Scan walks keys in order; count bounds the keys visited per call, not the
// keys returned, as with Redis. A cursor stands for the first key not yet
// visited, so keys deleted behind the cursor never shift the ones ahead.
func (s *BadgerStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	if count <= 0 {
		count = 10
	}
	if _, err := path.Match(match, ""); err != nil {
		return nil, 0, wrap(err, "Invalid scan pattern")
	}
	prefix := []byte(literalPrefix(match))

	start := prefix
	if cursor != 0 {
		resume, ok := s.takeCursor(cursor)
		if !ok {
			return nil, 0, wrap(fmt.Errorf("unknown cursor %d", cursor), "Invalid scan cursor")
		}
		start = resume
	}

	var keys []string
	var resume []byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		visited := int64(0)
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if visited == count {
				resume = it.Item().KeyCopy(nil)
				return nil
			}
			key := string(it.Item().KeyCopy(nil))
			if ok, _ := path.Match(match, key); ok {
				keys = append(keys, key)
			}
			visited++
		}
		return nil
	})
	if err != nil {
		return nil, 0, wrap(err, "Failed to scan cart")
	}
	if resume == nil {
		return keys, 0, nil
	}
	return keys, s.newCursor(resume), nil
}

// maxOpenCursors bounds the cursors of scans that were never finished
const maxOpenCursors = 4096

func (s *BadgerStore) newCursor(resume []byte) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cursors) >= maxOpenCursors {
		clear(s.cursors)
	}
	s.lastCursor++
	s.cursors[s.lastCursor] = resume
	return s.lastCursor
}

// takeCursor returns the key a cursor resumes from. Cursors are single use.
func (s *BadgerStore) takeCursor(cursor uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resume, ok := s.cursors[cursor]
	delete(s.cursors, cursor)
	return resume, ok
}

func (s *BadgerStore) Del(ctx context.Context, keys ...string) (int64, error) {
	var deleted int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = 0
		for _, key := range keys {
			_, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, wrap(err, "Failed to delete cart keys")
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return wrap(errors.New("database closed"), "Cache unavailable")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// literalPrefix is the part of a glob before its first metacharacter
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// badgerLogger forwards badger's internal log to zerolog
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}
