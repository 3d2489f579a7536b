package book

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Book.ApplyUpdate / Book.ApplySnapshot.
var (
	// ErrSecurityIDMismatch means the record's security does not match
	// the book it was routed to; this indicates a routing bug upstream,
	// not a recoverable data condition.
	ErrSecurityIDMismatch = errors.New("book: security id mismatch")
	// ErrOldSequenceNumber means the record's sequence number is not
	// newer than the book's; it is discarded silently by callers.
	ErrOldSequenceNumber = errors.New("book: old sequence number")
	// ErrSequenceNumberGap means the update's sequence number is more
	// than one past the book's; callers buffer it for catch-up.
	ErrSequenceNumberGap = errors.New("book: sequence number gap")
)

// InvalidPriceError reports a price that failed tick or float-domain
// validation, naming the record it came from.
type InvalidPriceError struct {
	SecurityID uint64
	SeqNo      uint64
	Msg        string
}

func (e InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price for security %d seq %d: %s", e.SecurityID, e.SeqNo, e.Msg)
}

// InvalidSideError reports an update entry whose side was neither bid
// nor ask.
type InvalidSideError struct {
	SecurityID uint64
	SeqNo      uint64
	Msg        string
}

func (e InvalidSideError) Error() string {
	return fmt.Sprintf("invalid side for security %d seq %d: %s", e.SecurityID, e.SeqNo, e.Msg)
}
