// Package arena implements the batch-retirement deque shared between a
// record parser (writer) and order book state (reader). Update payloads
// are appended in contiguous batches; a batch is freed only once it and
// every batch before it in the arena has been released, at which point
// the arena's base index advances past the whole drained prefix.
package arena

import "fmt"

type batchHeader struct {
	length  int
	retired bool
}

type entry[T any] struct {
	payload T
	header  *batchHeader
}

// Arena is an append-only deque of T grouped into batches. It is not
// safe for concurrent use; callers serialize access themselves (see the
// single-writer/single-reader discipline of the owning security).
type Arena[T any] struct {
	entries []entry[T]
	base    int
}

// New returns an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Pull is a lazy single-item source used by AppendBatch: ok=false with a
// nil error signals a clean end of the batch; a non-nil error aborts it.
type Pull[T any] func() (item T, ok bool, err error)

// AppendBatch drains pull until it signals end-of-batch or error. On
// error the arena is truncated back to its pre-call length and the error
// is returned; no partial batch is left behind. On success the batch's
// header is written into its first entry and a Handle naming the batch
// in absolute arena coordinates is returned.
func (a *Arena[T]) AppendBatch(pull Pull[T]) (Handle, error) {
	start := len(a.entries)
	for {
		item, ok, err := pull()
		if err != nil {
			a.entries = a.entries[:start]
			return Handle{}, err
		}
		if !ok {
			break
		}
		a.entries = append(a.entries, entry[T]{payload: item})
	}

	length := len(a.entries) - start
	if length > 0 {
		a.entries[start].header = &batchHeader{length: length}
	}
	return Handle{start: a.base + start, length: length}, nil
}

// AppendSlice is the case of AppendBatch where all items are already
// materialized (used by tests; the update reader appends via AppendBatch).
func (a *Arena[T]) AppendSlice(items []T) Handle {
	i := 0
	h, err := a.AppendBatch(func() (T, bool, error) {
		if i >= len(items) {
			var zero T
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	})
	if err != nil {
		// AppendSlice never produces an error via its pull closure.
		panic(fmt.Sprintf("arena: unreachable append error: %v", err))
	}
	return h
}

// Get returns the payload at an absolute index, or false if it has
// already been drained or was never written.
func (a *Arena[T]) Get(absoluteIndex int) (T, bool) {
	idx := absoluteIndex - a.base
	if idx < 0 || idx >= len(a.entries) {
		var zero T
		return zero, false
	}
	return a.entries[idx].payload, true
}

// Release marks the batch named by h as retired and, if h named the
// front batch, drains every immediately-following retired batch,
// advancing the arena's base index. Releasing an inert or empty handle,
// or one pointing outside the live window, is a no-op.
func (a *Arena[T]) Release(h Handle) {
	if h.inert || h.length == 0 {
		return
	}
	idx := h.start - a.base
	if idx < 0 || idx >= len(a.entries) {
		return
	}
	hdr := a.entries[idx].header
	if hdr == nil || hdr.length != h.length {
		return
	}
	hdr.retired = true

	if h.start != a.base {
		return
	}
	for len(a.entries) > 0 {
		front := a.entries[0].header
		if front == nil || !front.retired {
			break
		}
		n := front.length
		if n > len(a.entries) {
			n = len(a.entries)
		}
		a.entries = a.entries[n:]
		a.base += n
	}
}

// Base returns the arena's current base index, the absolute index of
// the oldest live entry (or of the next entry to be appended, if empty).
func (a *Arena[T]) Base() int {
	return a.base
}

// Len returns the number of live entries currently held in the arena.
func (a *Arena[T]) Len() int {
	return len(a.entries)
}
