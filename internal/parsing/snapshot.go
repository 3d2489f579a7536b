package parsing

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/thrasher-corp/l2replay/internal/book"
)

// SnapshotReader decodes a stream of fixed-width snapshot records:
// timestamp, seq_no, security_id (u64 each) followed by ten (price f64,
// qty u64) levels in bid1, ask1, bid2, ask2, ... bid5, ask5 order.
type SnapshotReader struct {
	r io.Reader
}

// NewSnapshotReader wraps r for sequential snapshot decoding.
func NewSnapshotReader(r io.Reader) *SnapshotReader {
	return &SnapshotReader{r: r}
}

// Next decodes the next snapshot record. It returns io.EOF, unwrapped,
// when the stream ends exactly on a record boundary; any other error
// means the stream ended or failed mid-record and is wrapped with
// context.
func (s *SnapshotReader) Next() (book.Snapshot, error) {
	var snap book.Snapshot

	var header [24]byte
	if _, err := io.ReadFull(s.r, header[:]); err != nil {
		if err == io.EOF {
			return book.Snapshot{}, io.EOF
		}
		return book.Snapshot{}, errors.Wrap(err, "parsing: truncated snapshot header")
	}
	snap.Timestamp = binary.LittleEndian.Uint64(header[0:8])
	snap.SeqNo = binary.LittleEndian.Uint64(header[8:16])
	snap.SecurityID = binary.LittleEndian.Uint64(header[16:24])

	levels := [10]*book.RawLevel{
		&snap.Bid1, &snap.Ask1,
		&snap.Bid2, &snap.Ask2,
		&snap.Bid3, &snap.Ask3,
		&snap.Bid4, &snap.Ask4,
		&snap.Bid5, &snap.Ask5,
	}
	for _, lvl := range levels {
		raw, err := readRawLevel(s.r)
		if err != nil {
			return book.Snapshot{}, errors.Wrap(err, "parsing: truncated snapshot level")
		}
		*lvl = raw
	}
	return snap, nil
}

func readRawLevel(r io.Reader) (book.RawLevel, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return book.RawLevel{}, err
	}
	price := math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	qty := binary.LittleEndian.Uint64(buf[8:16])
	return book.RawLevel{Price: price, Qty: qty}, nil
}
