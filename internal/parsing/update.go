package parsing

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/thrasher-corp/l2replay/internal/arena"
	"github.com/thrasher-corp/l2replay/internal/book"
)

// maxEntriesPerUpdate bounds how many entries a single update record may
// declare, guarding against a corrupt length field forcing an
// unbounded allocation.
const maxEntriesPerUpdate = 100_000

// UpdateReader decodes a stream of variable-width update records:
// timestamp, seq_no, security_id, num_updates (u64 each) followed by
// num_updates entries of (side u8, price f64, qty u64). Each security
// id accumulates its entries in its own arena, mirroring the source's
// one-deque-per-security ownership.
type UpdateReader struct {
	r      io.Reader
	arenas map[uint64]*arena.Arena[book.Entry]
}

// NewUpdateReader wraps r for sequential update decoding.
func NewUpdateReader(r io.Reader) *UpdateReader {
	return &UpdateReader{r: r, arenas: make(map[uint64]*arena.Arena[book.Entry])}
}

// Next decodes the next update record. Its Entries field is backed by
// that security's arena; releasing it when the book finishes with it
// reclaims the batch's storage. Next returns io.EOF, unwrapped, when
// the stream ends exactly on a record boundary.
func (u *UpdateReader) Next() (book.Update, error) {
	var header [32]byte
	if _, err := io.ReadFull(u.r, header[:]); err != nil {
		if err == io.EOF {
			return book.Update{}, io.EOF
		}
		return book.Update{}, errors.Wrap(err, "parsing: truncated update header")
	}

	timestamp := binary.LittleEndian.Uint64(header[0:8])
	seqNo := binary.LittleEndian.Uint64(header[8:16])
	securityID := binary.LittleEndian.Uint64(header[16:24])
	numUpdates := binary.LittleEndian.Uint64(header[24:32])
	if numUpdates >= maxEntriesPerUpdate {
		return book.Update{}, errors.Errorf("parsing: number of updates too large: %d", numUpdates)
	}

	a, ok := u.arenas[securityID]
	if !ok {
		a = arena.New[book.Entry]()
		u.arenas[securityID] = a
	}

	remaining := int(numUpdates)
	handle, err := a.AppendBatch(func() (book.Entry, bool, error) {
		if remaining == 0 {
			return book.Entry{}, false, nil
		}
		remaining--
		e, err := readEntry(u.r)
		if err != nil {
			return book.Entry{}, false, err
		}
		return e, true, nil
	})
	if err != nil {
		return book.Update{}, errors.Wrap(err, "parsing: truncated update entry")
	}

	return book.Update{
		Timestamp:  timestamp,
		SeqNo:      seqNo,
		SecurityID: securityID,
		Entries:    &ArenaEntries{arena: a, handle: handle},
	}, nil
}

func readEntry(r io.Reader) (book.Entry, error) {
	var buf [17]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return book.Entry{}, err
	}
	side := buf[0]
	price := math.Float64frombits(binary.LittleEndian.Uint64(buf[1:9]))
	qty := binary.LittleEndian.Uint64(buf[9:17])
	return book.Entry{Side: side, Price: price, Qty: qty}, nil
}

// ArenaEntries adapts one arena batch to book.EntrySource, and exposes
// Release/MakeInert so buffered.Book can manage the batch's lifetime
// once the update it belongs to is applied, displaced, or discarded.
type ArenaEntries struct {
	arena  *arena.Arena[book.Entry]
	handle arena.Handle
}

// ForEach visits every entry in the batch, in order.
func (e *ArenaEntries) ForEach(visit func(book.Entry) error) error {
	return arena.ForEach(e.arena, e.handle, visit)
}

// Release retires the batch, letting the arena reclaim it once every
// older batch has also been released.
func (e *ArenaEntries) Release() {
	e.arena.Release(e.handle)
}

// MakeInert suppresses a future Release of this handle from retiring
// its batch, used when this entry is displaced by a later update with
// the same sequence number (which carries its own batch).
func (e *ArenaEntries) MakeInert() {
	e.handle.MakeInert()
}
