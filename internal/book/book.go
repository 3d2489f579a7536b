// Package book implements the per-security Level-2 order book: price
// levels on each side, sequence-number discipline, and atomic
// application of snapshots and incremental updates.
package book

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// tick is the minimum price increment; every stored price must be an
// exact multiple of it.
var tick = decimal.NewFromFloat(0.01)

// Side identifies which side of the book an update entry targets.
type Side uint8

const (
	Bid Side = 0
	Ask Side = 1
)

// RawLevel is a (price, quantity) pair exactly as decoded off the wire,
// before tick validation converts the price to decimal.
type RawLevel struct {
	Price float64
	Qty   uint64
}

// Snapshot is a fully-decoded snapshot record: ten top-of-book levels
// ordered bid1, ask1, bid2, ask2, ... bid5, ask5.
type Snapshot struct {
	Timestamp  uint64
	SeqNo      uint64
	SecurityID uint64
	Bid1, Ask1 RawLevel
	Bid2, Ask2 RawLevel
	Bid3, Ask3 RawLevel
	Bid4, Ask4 RawLevel
	Bid5, Ask5 RawLevel
}

// Entry is one decoded update entry: a side, a raw price, and a
// quantity (zero meaning "remove this price level").
type Entry struct {
	Side  uint8
	Price float64
	Qty   uint64
}

// EntrySource lazily yields the entries of one update record. It is
// satisfied by the arena-backed handle the parser hands back, letting
// Book walk entries without materializing them into a slice first.
type EntrySource interface {
	ForEach(visit func(Entry) error) error
}

// Update is a fully-decoded update record referencing its entries by an
// EntrySource rather than owning them directly.
type Update struct {
	Timestamp  uint64
	SeqNo      uint64
	SecurityID uint64
	Entries    EntrySource
}

// Book holds one security's reconstructed order book.
type Book struct {
	SecurityID uint64
	SeqNo      uint64
	Timestamp  uint64

	bids bidLevels
	asks askLevels

	// Scratch buffers reused across ApplyUpdate calls so a steady
	// stream of updates does not churn the allocator.
	scratchBidChanges Levels
	scratchAskChanges Levels
}

// NewBook constructs a book from its first snapshot. The snapshot's
// prices are validated exactly as ApplySnapshot would validate them.
func NewBook(s Snapshot) (*Book, error) {
	b := &Book{SecurityID: s.SecurityID}
	if err := b.commitSnapshot(s); err != nil {
		return nil, err
	}
	return b, nil
}

// ApplySnapshot atomically replaces both sides of the book with the
// validated content of s. There is no gap check for snapshots.
func (b *Book) ApplySnapshot(s Snapshot) error {
	if s.SecurityID != b.SecurityID {
		return ErrSecurityIDMismatch
	}
	if s.SeqNo <= b.SeqNo {
		return ErrOldSequenceNumber
	}
	return b.commitSnapshot(s)
}

func (b *Book) commitSnapshot(s Snapshot) error {
	type tagged struct {
		side Side
		raw  RawLevel
	}
	ordered := [10]tagged{
		{Bid, s.Bid1}, {Ask, s.Ask1},
		{Bid, s.Bid2}, {Ask, s.Ask2},
		{Bid, s.Bid3}, {Ask, s.Ask3},
		{Bid, s.Bid4}, {Ask, s.Ask4},
		{Bid, s.Bid5}, {Ask, s.Ask5},
	}

	var bids, asks Levels
	for _, t := range ordered {
		if t.raw.Qty == 0 {
			continue
		}
		price, err := normalizePrice(t.raw.Price, s.SecurityID, s.SeqNo)
		if err != nil {
			return err
		}
		lvl := Level{Price: price, Qty: t.raw.Qty}
		if t.side == Bid {
			bids = append(bids, lvl)
		} else {
			asks = append(asks, lvl)
		}
	}

	// Only now, with every level validated, do we touch book state.
	b.bids.load(bids)
	b.asks.load(asks)
	b.Timestamp = s.Timestamp
	b.SeqNo = s.SeqNo
	return nil
}

// ApplyUpdate validates every entry of u before committing any of them:
// either the whole update is applied, or none of it is.
func (b *Book) ApplyUpdate(u Update) error {
	if u.SecurityID != b.SecurityID {
		return ErrSecurityIDMismatch
	}
	if u.SeqNo <= b.SeqNo {
		return ErrOldSequenceNumber
	}
	if u.SeqNo != b.SeqNo+1 {
		return ErrSequenceNumberGap
	}

	b.scratchBidChanges = b.scratchBidChanges[:0]
	b.scratchAskChanges = b.scratchAskChanges[:0]

	err := u.Entries.ForEach(func(e Entry) error {
		if e.Side != uint8(Bid) && e.Side != uint8(Ask) {
			return InvalidSideError{
				SecurityID: u.SecurityID,
				SeqNo:      u.SeqNo,
				Msg:        fmt.Sprintf("side must be 0 (bid) or 1 (ask), got %d", e.Side),
			}
		}
		price, err := normalizePrice(e.Price, u.SecurityID, u.SeqNo)
		if err != nil {
			return err
		}
		lvl := Level{Price: price, Qty: e.Qty}
		if Side(e.Side) == Bid {
			b.scratchBidChanges = append(b.scratchBidChanges, lvl)
		} else {
			b.scratchAskChanges = append(b.scratchAskChanges, lvl)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.bids.updateInsertByPrice(b.scratchBidChanges, 0)
	b.asks.updateInsertByPrice(b.scratchAskChanges, 0)
	b.Timestamp = u.Timestamp
	b.SeqNo = u.SeqNo
	return nil
}

// Bids returns a copy of the current bid-side levels, descending by price.
func (b *Book) Bids() Levels { return b.bids.retrieve() }

// Asks returns a copy of the current ask-side levels, ascending by price.
func (b *Book) Asks() Levels { return b.asks.retrieve() }

// String renders a one-line summary, used by Manager.String.
func (b *Book) String() string {
	return fmt.Sprintf("security=%d seq=%d ts=%d bids=%d asks=%d",
		b.SecurityID, b.SeqNo, b.Timestamp, len(b.bids), len(b.asks))
}

// normalizePrice converts a wire float64 to decimal, rejecting NaN/Inf
// and any value that is not an exact multiple of the tick.
func normalizePrice(price float64, securityID, seqNo uint64) (decimal.Decimal, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Decimal{}, InvalidPriceError{
			SecurityID: securityID,
			SeqNo:      seqNo,
			Msg:        fmt.Sprintf("price %v is not finite", price),
		}
	}
	d := decimal.NewFromFloat(price)
	if !d.Mod(tick).IsZero() {
		return decimal.Decimal{}, InvalidPriceError{
			SecurityID: securityID,
			SeqNo:      seqNo,
			Msg:        fmt.Sprintf("price %s is not a multiple of the %s tick", d, tick),
		}
	}
	return d, nil
}
