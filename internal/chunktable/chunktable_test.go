package chunktable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evidencekit/ewf/internal/section"
)

func TestAppendSegmentDerivesPackedSizeFromNextOffset(t *testing.T) {
	idx := NewIndex()
	raw := []section.RawTableEntry{
		{Offset: 100, Compressed: false},
		{Offset: 150, Compressed: true},
		{Offset: 220, Compressed: false},
	}
	// sectorsPayloadStart/Size describe where the backing `sectors`
	// section lives; the last entry's packed size is the gap to its end.
	idx.AppendSegment(1, raw, 100, 150)

	require.Equal(t, 3, idx.Len())

	e0, ok := idx.Lookup(0)
	require.True(t, ok)
	require.Equal(t, uint64(50), e0.PackedSize) // 150 - 100
	require.False(t, e0.Compressed)

	e1, ok := idx.Lookup(1)
	require.True(t, ok)
	require.Equal(t, uint64(70), e1.PackedSize) // 220 - 150
	require.True(t, e1.Compressed)

	e2, ok := idx.Lookup(2)
	require.True(t, ok)
	require.Equal(t, uint64(30), e2.PackedSize) // (100+150) - 220
}

func TestAppendSegmentAcrossMultipleSegments(t *testing.T) {
	idx := NewIndex()
	idx.AppendSegment(1, []section.RawTableEntry{{Offset: 0}}, 0, 64)
	idx.AppendSegment(2, []section.RawTableEntry{{Offset: 0}}, 0, 64)

	require.Equal(t, 2, idx.Len())
	e0, _ := idx.Lookup(0)
	e1, _ := idx.Lookup(1)
	require.Equal(t, 1, e0.SegmentIndex)
	require.Equal(t, 2, e1.SegmentIndex)
}

func TestLookupOutOfRange(t *testing.T) {
	idx := NewIndex()
	_, ok := idx.Lookup(0)
	require.False(t, ok)
	_, ok = idx.Lookup(-1)
	require.False(t, ok)
}

func TestReconcilePrefersPrimaryTable(t *testing.T) {
	primary := []section.RawTableEntry{{Offset: 10}}
	backup := []section.RawTableEntry{{Offset: 999}}
	got, err := Reconcile(TablePair{Table: primary, Table2: backup}, "seg.E01", nil)
	require.NoError(t, err)
	require.Equal(t, primary, got)
}

func TestReconcileFallsBackToTable2(t *testing.T) {
	backup := []section.RawTableEntry{{Offset: 42}}
	got, err := Reconcile(TablePair{
		TableErr: assertError("checksum mismatch"),
		Table2:   backup,
	}, "seg.E01", nil)
	require.NoError(t, err)
	require.Equal(t, backup, got)
}

func TestReconcileFailsWhenBothUnreadable(t *testing.T) {
	_, err := Reconcile(TablePair{
		TableErr:  assertError("table broken"),
		Table2Err: assertError("table2 broken"),
	}, "seg.E01", nil)
	require.Error(t, err)
}

type testError string

func (e testError) Error() string { return string(e) }

func assertError(msg string) error { return testError(msg) }
