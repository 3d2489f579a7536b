package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendSliceAndForEach(t *testing.T) {
	a := New[int]()
	h := a.AppendSlice([]int{1, 2, 3})

	var got []int
	err := ForEach(a, h, func(v int) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestForEachEmptyHandleVisitsNothing(t *testing.T) {
	a := New[int]()
	h := a.AppendSlice(nil)
	assert.Equal(t, 0, h.Len())

	called := false
	err := ForEach(a, h, func(int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestAppendBatchPropagatesIteratorErrorAndTruncates(t *testing.T) {
	a := New[int]()
	a.AppendSlice([]int{1}) // pre-existing batch, must survive the failed append below

	boom := errors.New("boom")
	i := 0
	values := []int{10, 20}
	_, err := a.AppendBatch(func() (int, bool, error) {
		if i >= len(values) {
			return 0, false, boom
		}
		v := values[i]
		i++
		return v, true, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.Len(), "failed batch must not leave partial entries behind")
}

// Scenario 6: arena reclamation. Batches A(3), B(4), C(2); release order
// B, A, C drains exactly as specified.
func TestArenaReclamationScenario(t *testing.T) {
	a := New[string]()
	ha := a.AppendSlice([]string{"a0", "a1", "a2"})
	hb := a.AppendSlice([]string{"b0", "b1", "b2", "b3"})
	hc := a.AppendSlice([]string{"c0", "c1"})

	require.Equal(t, 9, a.Len())
	require.Equal(t, 0, a.Base())

	a.Release(hb)
	assert.Equal(t, 9, a.Len(), "releasing a mid-arena batch must not drain anything")
	assert.Equal(t, 0, a.Base())

	a.Release(ha)
	assert.Equal(t, 2, a.Len(), "releasing the front batch drains it and every already-retired batch after it")
	assert.Equal(t, 7, a.Base())

	a.Release(hc)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 9, a.Base())
}

// Arena property: once every issued handle has been released, the
// arena holds nothing and its base equals the total appended.
func TestArenaDrainsFullyWhenAllHandlesReleased(t *testing.T) {
	a := New[int]()
	handles := make([]Handle, 0, 5)
	total := 0
	for i := 1; i <= 5; i++ {
		items := make([]int, i)
		handles = append(handles, a.AppendSlice(items))
		total += i
	}

	for i := len(handles) - 1; i >= 0; i-- {
		a.Release(handles[i])
	}

	assert.Equal(t, 0, a.Len())
	assert.Equal(t, total, a.Base())
}

func TestReleaseInertHandleIsNoop(t *testing.T) {
	a := New[int]()
	h := a.AppendSlice([]int{1, 2})
	h.MakeInert()
	a.Release(h)
	assert.Equal(t, 2, a.Len(), "an inert handle must never retire its batch")
	assert.Equal(t, 0, a.Base())
}

func TestReleaseHandleOutsideLiveWindowIsNoop(t *testing.T) {
	a := New[int]()
	h := a.AppendSlice([]int{1})
	a.Release(h) // drains it once, legitimately
	require.Equal(t, 0, a.Len())

	a.Release(h) // releasing again must not panic or corrupt state
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, a.Base())
}
