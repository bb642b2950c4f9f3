package match

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	fpZero  = "0000000000000000"
	fpOnes  = "ffffffffffffffff"
	fpSplit = "ffffffff00000000"
)

func page(n int, fingerprint string) Candidate {
	return Candidate{PageNumber: n, Fingerprint: fingerprint}
}

func TestAssignSequentialInOrder(t *testing.T) {
	pages := []Candidate{page(1, fpZero), page(2, fpOnes), page(3, fpSplit)}
	images := []Image{
		{Index: 0, Fingerprint: fpZero},
		{Index: 1, Fingerprint: fpOnes},
		{Index: 2, Fingerprint: fpSplit},
	}

	results := Assign(images, pages, 1, DefaultThresholds())
	require.Len(t, results, 3)

	for i, result := range results {
		require.Equal(t, i, result.Index)
		require.NotNil(t, result.PageNumber)
		require.Equal(t, i+1, *result.PageNumber)
		require.Equal(t, float64(1), result.Similarity)
		require.True(t, result.Passed)
	}
}

func TestAssignFallbackForOutOfOrderImage(t *testing.T) {
	// Image resembles page 3 strongly but pages 1 and 2 weakly; the scan
	// still lands it on page 3 with passed=true.
	pages := []Candidate{
		page(1, "5555555555555555"),
		page(2, "f0f0f0f0f0f0f0f0"),
		page(3, "aaaaaaaaaaaaaaaa"),
	}
	images := []Image{{Index: 0, Fingerprint: "aaaaaaaaaaaaaaab"}}

	results := Assign(images, pages, 1, DefaultThresholds())
	require.Len(t, results, 1)
	require.NotNil(t, results[0].PageNumber)
	require.Equal(t, 3, *results[0].PageNumber)
	require.True(t, results[0].Passed)
	require.GreaterOrEqual(t, results[0].Similarity, 0.7)
}

func TestAssignFallbackRescuesPageBelowStartPage(t *testing.T) {
	// Page 1 is already passed (startPage=2) but the photo is of page 1.
	// Sequential scanning over pages 2..3 fails, the fallback ignores the
	// floor and recovers page 1 on similarity alone.
	pages := []Candidate{page(1, fpZero), page(2, fpOnes), page(3, fpSplit)}
	images := []Image{{Index: 0, Fingerprint: "0000000000000001"}}

	results := Assign(images, pages, 2, DefaultThresholds())
	require.Len(t, results, 1)
	require.NotNil(t, results[0].PageNumber)
	require.Equal(t, 1, *results[0].PageNumber)
	require.True(t, results[0].Passed)
	require.InDelta(t, 1-1.0/64.0, results[0].Similarity, 1e-9)
}

func TestAssignAcceptsPageWithoutFingerprintPositionally(t *testing.T) {
	pages := []Candidate{page(1, ""), page(2, "")}
	images := []Image{
		{Index: 0, Fingerprint: fpOnes},
		{Index: 1, Fingerprint: ""},
	}

	results := Assign(images, pages, 1, DefaultThresholds())
	require.Equal(t, 1, *results[0].PageNumber)
	require.True(t, results[0].Passed)
	require.Equal(t, 2, *results[1].PageNumber)
	require.True(t, results[1].Passed)
}

func TestAssignUnmatchedWhenOnlyPageIsBelowStartPage(t *testing.T) {
	// The sole remaining page has no fingerprint and sits below the start
	// page, so neither scan can reach it.
	pages := []Candidate{page(1, "")}
	images := []Image{{Index: 0, Fingerprint: ""}}

	results := Assign(images, pages, 2, DefaultThresholds())
	require.Len(t, results, 1)
	require.Nil(t, results[0].PageNumber)
	require.False(t, results[0].Passed)
	require.Equal(t, float64(0), results[0].Similarity)
}

func TestAssignNoExpectedPages(t *testing.T) {
	images := []Image{{Index: 0, Fingerprint: fpOnes}, {Index: 1, Fingerprint: fpZero}}

	results := Assign(images, nil, 1, DefaultThresholds())
	require.Len(t, results, 2)
	for _, result := range results {
		require.Nil(t, result.PageNumber)
		require.False(t, result.Passed)
	}
}

func TestAssignImageWithoutFingerprintNeverMatchesFingerprintedPage(t *testing.T) {
	pages := []Candidate{page(1, fpOnes)}
	images := []Image{{Index: 0, Fingerprint: ""}}

	results := Assign(images, pages, 1, DefaultThresholds())
	require.Nil(t, results[0].PageNumber)
	require.False(t, results[0].Passed)
}

func TestAssignConsumesEachPageOnce(t *testing.T) {
	pages := []Candidate{page(1, fpOnes), page(2, fpZero)}
	images := []Image{
		{Index: 0, Fingerprint: fpOnes},
		{Index: 1, Fingerprint: fpOnes},
		{Index: 2, Fingerprint: fpOnes},
	}

	results := Assign(images, pages, 1, DefaultThresholds())
	require.Equal(t, 1, *results[0].PageNumber)
	// Second copy of the same photo cannot reuse page 1; page 2 is too far
	// for either threshold.
	require.Nil(t, results[1].PageNumber)
	require.Nil(t, results[2].PageNumber)
}

func TestAssignSortsUnorderedPageInput(t *testing.T) {
	pages := []Candidate{page(3, fpSplit), page(1, fpZero), page(2, fpOnes)}
	images := []Image{{Index: 0, Fingerprint: fpZero}}

	results := Assign(images, pages, 1, DefaultThresholds())
	require.Equal(t, 1, *results[0].PageNumber)
}
