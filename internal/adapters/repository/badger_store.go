package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

type BadgerConfig struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path     string
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Verbose forwards BadgerDB's info and debug logs.
	Verbose bool
}

// badgerLogger bridges BadgerDB's logger to the standard log package.
type badgerLogger struct {
	verbose bool
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[BADGER] ERROR "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	log.Printf("[BADGER] WARN "+format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	if l.verbose {
		log.Printf("[BADGER] "+format, args...)
	}
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	if l.verbose {
		log.Printf("[BADGER] DEBUG "+format, args...)
	}
}

// BadgerStore is the embedded key-value alternative to SQLiteStore.
//
// Keys:
//
//	checkin/<user>/<YYYY-MM-DD> -> JSON record
//	plan/<user>                 -> JSON plan
type BadgerStore struct {
	db *badger.DB
}

var (
	_ domain.LocalCheckinStore = (*BadgerStore)(nil)
	_ domain.PlanRepository    = (*BadgerStore)(nil)
)

func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{verbose: cfg.Verbose})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func checkinPrefix(userID string) []byte {
	return []byte("checkin/" + userID + "/")
}

func checkinKey(userID string, date domain.CalendarDate) []byte {
	return append(checkinPrefix(userID), date.String()...)
}

func planKey(userID string) []byte {
	return []byte("plan/" + userID)
}

func (s *BadgerStore) GetLocalRecords(ctx context.Context, userID string, r domain.DateRange) []domain.CheckinRecord {
	records := []domain.CheckinRecord{}
	var corrupt [][]byte

	prefix := checkinPrefix(userID)
	last := string(checkinKey(userID, r.To))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(checkinKey(userID, r.From)); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			if string(key) > last {
				break
			}

			err := item.Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err == nil && (rec.UserID != userID || string(checkinKey(userID, rec.Date)) != string(key)) {
					err = fmt.Errorf("%w: key mismatch", domain.ErrCorruptRecord)
				}
				if err != nil {
					dropCorrupt("BADGER", string(key), err)
					corrupt = append(corrupt, key)
					return nil
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		localStoreErrors.WithLabelValues("badger").Inc()
		log.Printf("[BADGER] read error for user %s: %v", userID, err)
		return []domain.CheckinRecord{}
	}

	if len(corrupt) > 0 {
		s.deleteKeys(corrupt)
	}
	return records
}

func (s *BadgerStore) GetLocalRecord(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	key := checkinKey(userID, date)

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrCheckinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger read error: %w", err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		dropCorrupt("BADGER", string(key), err)
		s.deleteKeys([][]byte{key})
		return nil, domain.ErrCheckinNotFound
	}
	return &rec, nil
}

func (s *BadgerStore) PutLocalRecord(ctx context.Context, record domain.CheckinRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	data, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode checkin: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkinKey(record.UserID, record.Date), data)
	})
}

// RefreshLocalRecord reads and writes in one transaction; a concurrent
// writer to the same key makes the commit fail with ErrConflict, which
// counts as not written.
func (s *BadgerStore) RefreshLocalRecord(ctx context.Context, record domain.CheckinRecord) (bool, error) {
	if !record.IsCommitted() {
		return false, nil
	}
	if err := record.Validate(); err != nil {
		return false, err
	}
	data, err := encodeRecord(record)
	if err != nil {
		return false, fmt.Errorf("failed to encode checkin: %w", err)
	}

	key := checkinKey(record.UserID, record.Date)
	written := false
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if cur, err := decodeRecord(raw); err == nil && !cur.ReplaceableBy(record) {
				return nil
			}
		}
		written = true
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger refresh error: %w", err)
	}
	return written, nil
}

func (s *BadgerStore) deleteKeys(keys [][]byte) {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[BADGER] Failed to delete corrupt keys: %v", err)
	}
}

// putRaw writes bytes under a check-in key without validation. Tests use it
// to plant corrupt entries.
func (s *BadgerStore) putRaw(userID string, date domain.CalendarDate, raw []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkinKey(userID, date), raw)
	})
}

func (s *BadgerStore) GetActivePlan(ctx context.Context, userID string) (*domain.Plan, error) {
	var plan *domain.Plan
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(planKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var p domain.Plan
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("failed to unmarshal plan: %w", err)
			}
			plan = &p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *BadgerStore) SavePlan(ctx context.Context, p *domain.Plan) error {
	next := *p

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(planKey(p.UserID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			next.Version = 1
		case err != nil:
			return err
		default:
			var stored domain.Plan
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &stored) }); err != nil {
				return fmt.Errorf("failed to unmarshal plan: %w", err)
			}
			if stored.Version != p.Version {
				return domain.ErrPlanConflict
			}
			next.Version = stored.Version + 1
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
		return txn.Set(planKey(p.UserID), data)
	})
	if err != nil {
		return err
	}

	p.Version = next.Version
	return nil
}
