package arena

// Handle is a scope-bound descriptor naming one batch inside an Arena by
// absolute start index and length. It carries no reference back to its
// owning Arena; callers supply the Arena explicitly to ForEach and
// Release (design note: option (a), absolute indices over a
// back-reference, is preferable wherever the call site can supply the
// arena).
type Handle struct {
	start  int
	length int
	inert  bool
}

// Len reports how many entries the handle names.
func (h Handle) Len() int {
	return h.length
}

// MakeInert suppresses any future Release of this handle from retiring
// its batch. Used when a displaced pending update's handle must not
// trigger retirement of a batch still logically referenced elsewhere
// (the duplicate sequence-number case in the buffered book).
func (h *Handle) MakeInert() {
	h.inert = true
}

// ForEach visits every payload named by the handle, in order, stopping
// and returning the first error a visitor produces. Visiting an empty
// handle invokes visit zero times.
func ForEach[T any](a *Arena[T], h Handle, visit func(T) error) error {
	for i := h.start; i < h.start+h.length; i++ {
		v, ok := a.Get(i)
		if !ok {
			continue // already drained; nothing left to visit for this index
		}
		if err := visit(v); err != nil {
			return err
		}
	}
	return nil
}
