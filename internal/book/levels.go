package book

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Level is one (price, quantity) pair on one side of a book.
type Level struct {
	Price decimal.Decimal
	Qty   uint64
}

// Levels is an unordered batch of levels, as read off the wire before
// being folded into a book side.
type Levels []Level

// askLevels holds ask-side levels sorted ascending by price, the
// teacher's sorted-slice idiom (Levels/askLevels/bidLevels in
// exchanges/orderbook) in place of a tree or hash map keyed by price.
type askLevels []Level

// bidLevels holds bid-side levels sorted descending by price.
type bidLevels []Level

// load replaces the side wholesale with a freshly validated snapshot,
// discarding any previous content. A nil or empty input purges the side.
func (a *askLevels) load(in Levels) {
	if len(in) == 0 {
		*a = nil
		return
	}
	cp := make(askLevels, len(in))
	copy(cp, in)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Price.LessThan(cp[j].Price) })
	*a = cp
}

func (b *bidLevels) load(in Levels) {
	if len(in) == 0 {
		*b = nil
		return
	}
	cp := make(bidLevels, len(in))
	copy(cp, in)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Price.GreaterThan(cp[j].Price) })
	*b = cp
}

// updateInsertByPrice amends the level at a matching price, inserts a
// new level in sorted position, or deletes the matching level when qty
// is zero. maxDepth, if positive, truncates the tail beyond that depth
// after all updates are applied; zero means unlimited.
func (a *askLevels) updateInsertByPrice(updates Levels, maxDepth int) {
	for _, u := range updates {
		levels := []Level(*a)
		idx := sort.Search(len(levels), func(i int) bool { return !levels[i].Price.LessThan(u.Price) })
		matched := idx < len(levels) && levels[idx].Price.Equal(u.Price)
		switch {
		case matched && u.Qty == 0:
			levels = append(levels[:idx], levels[idx+1:]...)
		case matched:
			levels[idx].Qty = u.Qty
		case u.Qty == 0:
			// deleting a price level that was never present; nothing to do
		default:
			levels = append(levels, Level{})
			copy(levels[idx+1:], levels[idx:])
			levels[idx] = u
		}
		*a = levels
	}
	if maxDepth > 0 && len(*a) > maxDepth {
		*a = (*a)[:maxDepth]
	}
}

func (b *bidLevels) updateInsertByPrice(updates Levels, maxDepth int) {
	for _, u := range updates {
		levels := []Level(*b)
		idx := sort.Search(len(levels), func(i int) bool { return !levels[i].Price.GreaterThan(u.Price) })
		matched := idx < len(levels) && levels[idx].Price.Equal(u.Price)
		switch {
		case matched && u.Qty == 0:
			levels = append(levels[:idx], levels[idx+1:]...)
		case matched:
			levels[idx].Qty = u.Qty
		case u.Qty == 0:
			// deleting a price level that was never present; nothing to do
		default:
			levels = append(levels, Level{})
			copy(levels[idx+1:], levels[idx:])
			levels[idx] = u
		}
		*b = levels
	}
	if maxDepth > 0 && len(*b) > maxDepth {
		*b = (*b)[:maxDepth]
	}
}

func (a askLevels) retrieve() Levels {
	out := make(Levels, len(a))
	copy(out, a)
	return out
}

func (b bidLevels) retrieve() Levels {
	out := make(Levels, len(b))
	copy(out, b)
	return out
}
