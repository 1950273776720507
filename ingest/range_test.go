package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceRange(t *testing.T) {
	res, err := sliceRange("20250101", "20250405", 90)
	require.Nil(t, err)
	require.Len(t, res, 2)
	require.Equal(t, [2]string{"20250101", "20250331"}, res[0])
	require.Equal(t, [2]string{"20250401", "20250405"}, res[1])
}

func TestSliceRangeSingleDay(t *testing.T) {
	res, err := sliceRange("20250827", "20250827", 90)
	require.Nil(t, err)
	require.Len(t, res, 1)
	require.Equal(t, [2]string{"20250827", "20250827"}, res[0])
}

func TestSliceRangeInverted(t *testing.T) {
	res, err := sliceRange("20250827", "20250826", 90)
	require.Nil(t, err)
	require.Empty(t, res)
}

func TestSliceRangeDefaultDays(t *testing.T) {
	// sliceDays非法时回落到90天
	res, err := sliceRange("20250101", "20250401", 0)
	require.Nil(t, err)
	require.Len(t, res, 2)
}

func TestSliceRangeBadInput(t *testing.T) {
	_, err := sliceRange("2025-01-01x", "20250405", 90)
	require.NotNil(t, err)
}
