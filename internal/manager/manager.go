// Package manager dispatches snapshot and update records to the
// per-security buffered book they belong to, creating a book on first
// snapshot and routing everything else by security id.
package manager

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/thrasher-corp/l2replay/internal/book"
	"github.com/thrasher-corp/l2replay/internal/buffered"
)

// ErrOrderBookNotFound means an update named a security id the manager
// has never seen a snapshot for.
var ErrOrderBookNotFound = errors.New("manager: order book not found")

// Manager owns one buffered.Book per security id and is safe for
// concurrent use: mu only guards the routing table, since buffered.Book
// itself serializes concurrent callers for the same security.
type Manager struct {
	mu         sync.RWMutex
	books      map[uint64]*buffered.Book
	maxPending int
}

// New returns an empty Manager. maxPending bounds each book's pending
// list capacity; zero or negative selects buffered.MaxPending.
func New(maxPending int) *Manager {
	if maxPending <= 0 {
		maxPending = buffered.MaxPending
	}
	return &Manager{books: make(map[uint64]*buffered.Book), maxPending: maxPending}
}

// ApplySnapshot routes s to the book for s.SecurityID, creating it if
// this is the first snapshot seen for that security.
func (m *Manager) ApplySnapshot(s book.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[s.SecurityID]
	if !ok {
		newBook, err := book.NewBook(s)
		if err != nil {
			return err
		}
		m.books[s.SecurityID] = buffered.NewWithCapacity(newBook, m.maxPending)
		return nil
	}
	return b.ApplySnapshot(s)
}

// ApplyUpdate routes u to the book for u.SecurityID. ErrOrderBookNotFound
// is returned if no snapshot has been seen yet for that security.
func (m *Manager) ApplyUpdate(u book.Update) error {
	m.mu.RLock()
	b, ok := m.books[u.SecurityID]
	m.mu.RUnlock()
	if !ok {
		return ErrOrderBookNotFound
	}
	return b.ApplyUpdate(u)
}

// Get returns the buffered book for a security id, if one exists.
func (m *Manager) Get(securityID uint64) (*buffered.Book, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[securityID]
	return b, ok
}

// String renders every tracked book's summary, ordered by security id
// for reproducible output.
func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uint64, 0, len(m.books))
	for id := range m.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintln(&sb, m.books[id])
	}
	return sb.String()
}
