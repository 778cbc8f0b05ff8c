// Package cache keeps AudiMeta responses in a local Badger database so that
// re-running a split does not hit the metadata service again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/maauso/audimeta-splitter/internal/audimeta"
	"github.com/maauso/audimeta-splitter/internal/plan"
)

const (
	chapterPrefix = "chapters:"
	bookPrefix    = "book:"
)

// ErrMiss is returned by Store.Get when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a small JSON key/value store with per-entry TTL.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the Badger database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logging
	return open(opts, logger)
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger db: %w", err)
	}

	logger.Debug("cache opened", slog.String("path", opts.Dir))

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value stored under key into dest.
func (s *Store) Get(key string, dest any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache: get %s: %w", key, err)
	}
	return nil
}

// Set stores value under key. A positive ttl makes the entry expire.
func (s *Store) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Clear removes every entry.
func (s *Store) Clear() error {
	return s.db.DropAll()
}

// Upstream is the metadata source the cache sits in front of.
type Upstream interface {
	Fetch(ctx context.Context, asin string) ([]plan.RawChapter, error)
	GetBook(ctx context.Context, asin string) (*audimeta.Book, error)
	Search(ctx context.Context, q audimeta.SearchQuery) ([]audimeta.Book, error)
	// Region is the Audible marketplace the upstream answers for.
	Region() string
}

// Source serves chapters and books from the store and falls back to the
// upstream on a miss. Only successful responses are stored. Entries are
// keyed by region and ASIN, so one store can back several regions.
type Source struct {
	next   Upstream
	store  *Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewSource wraps next with store.
func NewSource(next Upstream, store *Store, ttl time.Duration, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{next: next, store: store, ttl: ttl, logger: logger}
}

// Fetch returns cached chapters for asin, fetching them upstream on a miss.
func (s *Source) Fetch(ctx context.Context, asin string) ([]plan.RawChapter, error) {
	key := s.key(chapterPrefix, asin)

	var chapters []plan.RawChapter
	if s.lookup(key, &chapters) {
		return chapters, nil
	}

	chapters, err := s.next.Fetch(ctx, asin)
	if err != nil {
		return nil, err
	}

	s.store.put(key, chapters, s.ttl)
	return chapters, nil
}

// GetBook returns the cached book for asin, fetching it upstream on a miss.
func (s *Source) GetBook(ctx context.Context, asin string) (*audimeta.Book, error) {
	key := s.key(bookPrefix, asin)

	var book audimeta.Book
	if s.lookup(key, &book) {
		return &book, nil
	}

	fetched, err := s.next.GetBook(ctx, asin)
	if err != nil {
		return nil, err
	}

	s.store.put(key, fetched, s.ttl)
	return fetched, nil
}

// Search is passed through to the upstream. Results are not cached.
func (s *Source) Search(ctx context.Context, q audimeta.SearchQuery) ([]audimeta.Book, error) {
	return s.next.Search(ctx, q)
}

// Region returns the region of the upstream.
func (s *Source) Region() string {
	return s.next.Region()
}

// Invalidate drops the cached entries of a book in the upstream's region.
func (s *Source) Invalidate(asin string) error {
	return errors.Join(
		s.store.Delete(s.key(chapterPrefix, asin)),
		s.store.Delete(s.key(bookPrefix, asin)),
	)
}

// key builds <prefix><region>:<ASIN>.
func (s *Source) key(prefix, asin string) string {
	return prefix + strings.ToLower(strings.TrimSpace(s.next.Region())) + ":" + normalize(asin)
}

func (s *Source) lookup(key string, dest any) bool {
	err := s.store.Get(key, dest)
	switch {
	case err == nil:
		s.logger.Debug("cache hit", slog.String("key", key))
		return true
	case errors.Is(err, ErrMiss):
		s.logger.Debug("cache miss", slog.String("key", key))
	default:
		s.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return false
}

// put stores value and logs, rather than returns, a failure.
func (s *Store) put(key string, value any, ttl time.Duration) {
	if err := s.Set(key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func normalize(asin string) string {
	return strings.ToUpper(strings.TrimSpace(asin))
}
