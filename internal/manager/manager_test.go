package manager

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/l2replay/internal/book"
)

type sliceEntries []book.Entry

func (s sliceEntries) ForEach(visit func(book.Entry) error) error {
	for _, e := range s {
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

func testSnapshot(securityID, seq uint64) book.Snapshot {
	return book.Snapshot{
		Timestamp:  1,
		SeqNo:      seq,
		SecurityID: securityID,
		Bid1:       book.RawLevel{Price: 100.00, Qty: 10},
		Ask1:       book.RawLevel{Price: 100.01, Qty: 10},
	}
}

func TestApplySnapshotCreatesNewBook(t *testing.T) {
	m := New(0)
	require.NoError(t, m.ApplySnapshot(testSnapshot(1001, 100)))

	b, ok := m.Get(1001)
	require.True(t, ok)
	assert.EqualValues(t, 100, b.SeqNo())
}

func TestApplySnapshotToExistingSecurityDelegates(t *testing.T) {
	m := New(0)
	require.NoError(t, m.ApplySnapshot(testSnapshot(1001, 100)))
	require.NoError(t, m.ApplySnapshot(testSnapshot(1001, 101)))

	b, ok := m.Get(1001)
	require.True(t, ok)
	assert.EqualValues(t, 101, b.SeqNo())
}

func TestApplyUpdateToUnknownSecurityReturnsNotFound(t *testing.T) {
	m := New(0)
	err := m.ApplyUpdate(book.Update{SeqNo: 101, SecurityID: 1001, Entries: sliceEntries{}})
	assert.ErrorIs(t, err, ErrOrderBookNotFound)
}

func TestApplyUpdateToExistingSecurity(t *testing.T) {
	m := New(0)
	require.NoError(t, m.ApplySnapshot(testSnapshot(1001, 100)))

	err := m.ApplyUpdate(book.Update{SeqNo: 101, SecurityID: 1001, Entries: sliceEntries{}})
	assert.NoError(t, err)
}

func TestMultipleSecurityIDsTrackedIndependently(t *testing.T) {
	m := New(0)
	require.NoError(t, m.ApplySnapshot(testSnapshot(1001, 100)))
	require.NoError(t, m.ApplySnapshot(testSnapshot(1002, 200)))

	b1, ok := m.Get(1001)
	require.True(t, ok)
	b2, ok := m.Get(1002)
	require.True(t, ok)
	assert.EqualValues(t, 100, b1.SeqNo())
	assert.EqualValues(t, 200, b2.SeqNo())
}

func TestStringOrdersBySecurityID(t *testing.T) {
	m := New(0)
	require.NoError(t, m.ApplySnapshot(testSnapshot(1002, 200)))
	require.NoError(t, m.ApplySnapshot(testSnapshot(1001, 100)))

	out := m.String()
	i1001 := indexOf(out, "security=1001")
	i1002 := indexOf(out, "security=1002")
	require.GreaterOrEqual(t, i1001, 0)
	require.GreaterOrEqual(t, i1002, 0)
	assert.Less(t, i1001, i1002)
}

// Concurrent callers routed to different securities must not corrupt
// each other's book state: each buffered.Book serializes its own
// callers independently of the manager's routing-table lock.
func TestApplyUpdateConcurrentSecuritiesDoNotInterfere(t *testing.T) {
	m := New(0)
	const securities = 8
	const updatesPerSecurity = 50

	for i := 0; i < securities; i++ {
		securityID := uint64(1000 + i)
		require.NoError(t, m.ApplySnapshot(testSnapshot(securityID, 0)))
	}

	var wg sync.WaitGroup
	for i := 0; i < securities; i++ {
		securityID := uint64(1000 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := uint64(1); seq <= updatesPerSecurity; seq++ {
				err := m.ApplyUpdate(book.Update{SeqNo: seq, SecurityID: securityID, Entries: sliceEntries{}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < securities; i++ {
		securityID := uint64(1000 + i)
		b, ok := m.Get(securityID)
		require.True(t, ok)
		assert.Equal(t, securityID, b.SecurityID())
		assert.EqualValues(t, updatesPerSecurity, b.SeqNo())
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
