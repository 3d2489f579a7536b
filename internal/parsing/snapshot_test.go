package parsing

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func appendF64(buf *bytes.Buffer, v float64) {
	appendU64(buf, math.Float64bits(v))
}

func encodeSnapshot(timestamp, seqNo, securityID uint64, prices [10]float64, qtys [10]uint64) []byte {
	var buf bytes.Buffer
	appendU64(&buf, timestamp)
	appendU64(&buf, seqNo)
	appendU64(&buf, securityID)
	for i := 0; i < 10; i++ {
		appendF64(&buf, prices[i])
		appendU64(&buf, qtys[i])
	}
	return buf.Bytes()
}

func TestSnapshotReaderDecodesAllFields(t *testing.T) {
	var prices [10]float64
	var qtys [10]uint64
	for i := range prices {
		prices[i] = 1000.0 + float64(i)*0.5
		qtys[i] = 100 + uint64(i)*10
	}
	data := encodeSnapshot(1234567890, 42, 123456, prices, qtys)

	snap, err := NewSnapshotReader(bytes.NewReader(data)).Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1234567890, snap.Timestamp)
	assert.EqualValues(t, 42, snap.SeqNo)
	assert.EqualValues(t, 123456, snap.SecurityID)
	assert.Equal(t, 1000.0, snap.Bid1.Price)
	assert.EqualValues(t, 100, snap.Bid1.Qty)
	assert.Equal(t, 1004.5, snap.Ask5.Price)
	assert.EqualValues(t, 190, snap.Ask5.Qty)
}

func TestSnapshotReaderCleanEOFBetweenRecords(t *testing.T) {
	_, err := NewSnapshotReader(bytes.NewReader(nil)).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSnapshotReaderMidRecordTruncationIsAnError(t *testing.T) {
	var prices [10]float64
	var qtys [10]uint64
	data := encodeSnapshot(1, 1, 1, prices, qtys)

	_, err := NewSnapshotReader(bytes.NewReader(data[:10])).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestSnapshotReaderSequentialRecords(t *testing.T) {
	var prices [10]float64
	var qtys [10]uint64
	a := encodeSnapshot(1, 100, 1001, prices, qtys)
	b := encodeSnapshot(2, 101, 1001, prices, qtys)

	r := NewSnapshotReader(bytes.NewReader(append(a, b...)))
	s1, err := r.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 100, s1.SeqNo)

	s2, err := r.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 101, s2.SeqNo)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
