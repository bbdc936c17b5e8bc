// Package store persists events in an embedded BadgerDB so earlier incidents
// can be read back by time range for repeat-issue analysis.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
)

// eventPrefix namespaces event keys: prefix | big-endian unix nanos | id.
var eventPrefix = []byte("ev/")

// Config holds configuration for the event store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// Verbosity controls which event fields are persisted.
	Verbosity output.Verbosity
	// GCInterval is how often value log GC runs. 0 disables it.
	GCInterval time.Duration
	// Logger receives BadgerDB's own log lines. Nil silences them.
	Logger *slog.Logger
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true, Verbosity: output.Full}
}

// Store is an output.Output backed by BadgerDB. Values are zstd-compressed
// JSON events.
type Store struct {
	db        *badger.DB
	verbosity output.Verbosity
	enc       *zstd.Encoder
	dec       *zstd.Decoder

	stop      chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
}

// Open opens or creates the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: zstd decoder: %w", err)
	}

	s := &Store{db: db, verbosity: cfg.Verbosity, enc: enc, dec: dec, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.Logger)
	}
	return s, nil
}

// Key returns the storage key for e. Keys sort by timestamp, then ID.
func Key(e model.Event) []byte {
	k := make([]byte, 0, len(eventPrefix)+8+len(e.ID))
	k = append(k, eventPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(e.Timestamp.UnixNano()))
	return append(k, e.ID...)
}

// timeKey is the smallest key at t. The zero time maps to the bare prefix.
func timeKey(t time.Time) []byte {
	k := make([]byte, 0, len(eventPrefix)+8)
	k = append(k, eventPrefix...)
	if t.IsZero() {
		return k
	}
	return binary.BigEndian.AppendUint64(k, uint64(t.UnixNano()))
}

// Write stores the event. Writing the same event twice overwrites it.
func (s *Store) Write(_ context.Context, event model.Event) error {
	data, err := json.Marshal(output.FormatEvent(event, s.verbosity))
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	val := s.enc.EncodeAll(data, nil)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(Key(event), val)
	})
	if err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	return nil
}

// Range returns the events with from <= ts < to in timestamp order. A zero
// to means no upper bound.
func (s *Store) Range(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	events := []model.Event{}
	var upper []byte
	if !to.IsZero() {
		upper = timeKey(to)
	}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(timeKey(from)); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if upper != nil && bytes.Compare(item.Key(), upper) >= 0 {
				break
			}
			var ev model.Event
			err := item.Value(func(val []byte) error {
				data, err := s.dec.DecodeAll(val, nil)
				if err != nil {
					return err
				}
				return json.Unmarshal(data, &ev)
			})
			if err != nil {
				return fmt.Errorf("decode %x: %w", item.Key(), err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: range: %w", err)
	}
	return events, nil
}

// Count returns the number of stored events.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Close stops value log GC and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.gcDone != nil {
			<-s.gcDone
		}
		s.enc.Close()
		s.dec.Close()
		err = s.db.Close()
	})
	return err
}

func (s *Store) runGC(interval time.Duration, logger *slog.Logger) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("store value log gc", "error", err)
			}
		}
	}
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct{ l *slog.Logger }

func (b *badgerLogger) Errorf(f string, a ...any)   { b.l.Error(fmt.Sprintf(f, a...)) }
func (b *badgerLogger) Warningf(f string, a ...any) { b.l.Warn(fmt.Sprintf(f, a...)) }
func (b *badgerLogger) Infof(f string, a ...any)    { b.l.Info(fmt.Sprintf(f, a...)) }
func (b *badgerLogger) Debugf(f string, a ...any)   { b.l.Debug(fmt.Sprintf(f, a...)) }
