// Package buffered adds sequence-gap tolerance on top of internal/book:
// updates arriving out of order are held until the missing predecessor
// shows up, instead of being rejected outright.
package buffered

import (
	"sort"
	"sync"

	"github.com/thrasher-corp/l2replay/internal/book"
)

// MaxPending bounds how many out-of-order updates a Book will hold at
// once. Matches MAX_PENDING_UPDATES in the source's l2_order_book
// sibling, the variant its own main.rs wires up.
const MaxPending = 1000

// releaser is implemented by an EntrySource whose backing storage can be
// freed once the update it belongs to will never be applied.
type releaser interface {
	Release()
}

// inerter is implemented by an EntrySource whose backing handle can be
// neutralized, so that a later Release of that handle does not retire
// its batch.
type inerter interface {
	MakeInert()
}

// pendingEntry is one buffered update, kept in a slice ordered ascending
// by SeqNo. A sorted slice with binary-search insert/remove stands in
// for the source's BTreeMap<u64, OrderBookUpdate>, mirroring the same
// idiom internal/book uses for price levels.
type pendingEntry struct {
	seqNo  uint64
	update book.Update
}

// Book wraps a *book.Book with a bounded, sequence-ordered holding area
// for updates that arrived ahead of the book's current position. Safe
// for concurrent use: a manager routing records to many Books by
// security id only needs to serialize its own routing table, not each
// Book's apply calls.
type Book struct {
	mu         sync.Mutex
	book       *book.Book
	maxPending int
	pending    []pendingEntry
}

// New wraps an already-constructed book with gap tolerance, using the
// default pending capacity.
func New(b *book.Book) *Book {
	return NewWithCapacity(b, MaxPending)
}

// NewWithCapacity is New with an explicit pending-list capacity.
func NewWithCapacity(b *book.Book, maxPending int) *Book {
	return &Book{book: b, maxPending: maxPending}
}

// SecurityID, SeqNo and Timestamp expose the underlying book's position.
func (b *Book) SecurityID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.SecurityID
}

func (b *Book) SeqNo() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.SeqNo
}

func (b *Book) Timestamp() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Timestamp
}

// Bids and Asks expose the underlying book's current levels.
func (b *Book) Bids() book.Levels {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Bids()
}

func (b *Book) Asks() book.Levels {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Asks()
}

func (b *Book) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.String()
}

// Pending reports how many updates are currently buffered, for tests
// and diagnostics.
func (b *Book) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// ApplyUpdate attempts to apply u to the book. A sequence-number gap is
// not an error the caller need act on beyond the return value: the
// update is buffered and replayed automatically once its predecessor
// arrives (here or via a later ApplyUpdate/ApplySnapshot call).
func (b *Book) ApplyUpdate(u book.Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.book.ApplyUpdate(u)
	if err == book.ErrSequenceNumberGap {
		b.buffer(u)
		return err
	}
	// Every other outcome is terminal for u: either it was applied, or it
	// was rejected for a reason no later retry can fix (stale, mismatched
	// security, invalid price/side). Either way it will never be buffered,
	// so its handle is released now.
	release(u)
	if err == nil {
		b.catchUp()
	}
	return err
}

// ApplySnapshot applies s to the book, then discards any buffered
// update the snapshot has already subsumed and attempts catch-up with
// whatever remains.
func (b *Book) ApplySnapshot(s book.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.book.SeqNo
	if err := b.book.ApplySnapshot(s); err != nil {
		return err
	}
	b.discardSubsumed(old, s.SeqNo)
	b.catchUp()
	return nil
}

// buffer inserts u into the pending list in sorted position, evicting
// the oldest entry first if the list is already at capacity. A
// pre-existing entry at the same key is displaced: its handle is made
// inert rather than released, so dropping it never retires its batch.
func (b *Book) buffer(u book.Update) {
	if i, found := b.find(u.SeqNo); found {
		neutralize(b.pending[i].update)
		b.pending[i].update = u
		return
	}
	if len(b.pending) >= b.maxPending {
		b.evictOldest()
	}
	i, _ := b.find(u.SeqNo)
	b.pending = append(b.pending, pendingEntry{})
	copy(b.pending[i+1:], b.pending[i:])
	b.pending[i] = pendingEntry{seqNo: u.SeqNo, update: u}
}

// find returns the sorted insertion index for seqNo, and whether an
// entry already occupies it.
func (b *Book) find(seqNo uint64) (int, bool) {
	i := sort.Search(len(b.pending), func(i int) bool { return b.pending[i].seqNo >= seqNo })
	return i, i < len(b.pending) && b.pending[i].seqNo == seqNo
}

// evictOldest drops the single lowest-sequence pending entry, releasing
// its handle since it will never be applied.
func (b *Book) evictOldest() {
	if len(b.pending) == 0 {
		return
	}
	release(b.pending[0].update)
	b.pending = b.pending[1:]
}

// catchUp repeatedly looks for book.SeqNo+1 in the pending list and
// applies it, stopping at the first gap or the first application
// failure. Once dequeued, an entry is never retried, so its handle is
// released whether or not the apply itself succeeds.
func (b *Book) catchUp() {
	for {
		i, found := b.find(b.book.SeqNo + 1)
		if !found {
			return
		}
		entry := b.pending[i]
		b.pending = append(b.pending[:i], b.pending[i+1:]...)
		err := b.book.ApplyUpdate(entry.update)
		release(entry.update)
		if err != nil {
			return
		}
	}
}

// discardSubsumed removes every pending entry with seqNo in [old, upTo),
// releasing their handles: a snapshot at or past upTo has already
// absorbed whatever state they would have produced.
func (b *Book) discardSubsumed(old, upTo uint64) {
	kept := b.pending[:0]
	for _, e := range b.pending {
		if e.seqNo >= old && e.seqNo < upTo {
			release(e.update)
			continue
		}
		kept = append(kept, e)
	}
	b.pending = kept
}

func release(u book.Update) {
	if r, ok := u.Entries.(releaser); ok {
		r.Release()
	}
}

func neutralize(u book.Update) {
	if n, ok := u.Entries.(inerter); ok {
		n.MakeInert()
	}
}
