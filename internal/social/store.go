// Package social holds the in-memory domain state of the app: the roster
// of users with their friend lists, the book catalog with its sharing
// grants, and the message log.
//
// A Store is an explicit value passed to whoever needs it. There is no
// package-level state, so a server can keep one Store per tenant or per test.
// Every operation takes the caller's user id as a parameter.
//
// LOCKING:
// All three collections sit behind one sync.RWMutex. Mutations (accept a
// request, grant a share, append a message) read then write several sets, so
// they hold the write lock for their whole duration. Derived views take the
// read lock and may run in parallel. The roster is small (tens of users), so
// a single lock is simpler than per-entity locking and never contended.
//
// COPIES, NOT ALIASES:
// Every value handed out is a deep copy. Callers can modify what they get
// back without corrupting the store, and a view computed earlier never
// changes underneath them.
package social

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/bookshelf/internal/model"
)

// Store is the domain store. The zero value is not usable; call New.
type Store struct {
	mu sync.RWMutex

	users     map[string]*model.User
	userOrder []string

	books     map[string]*model.Book
	bookOrder []string

	messages     []*model.Message
	messageIndex map[string]int // message id -> position in messages

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Tests use it to get deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the xid-based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger sets the logger used for domain events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		users:        make(map[string]*model.User),
		books:        make(map[string]*model.Book),
		messageIndex: make(map[string]int),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return xid.New().String() },
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
