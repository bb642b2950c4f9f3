// Package match assigns a batch of submitted page photos to the expected
// pages of a workbook. Assignment is sequential first (photos are usually
// taken in page order), with a best-similarity fallback for photos that miss
// the sequential window.
package match

import (
	"sort"

	"github.com/lumen-edu/workbook-api/internal/phash"
)

// Thresholds tunes the matcher. Sequential matching trusts positional
// context, so it accepts weaker similarity than the fallback scan, which has
// fingerprint evidence alone to go on.
type Thresholds struct {
	Sequential float64
	Acceptance float64
	HashBits   int
}

// DefaultThresholds returns the matcher defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Sequential: 0.5,
		Acceptance: 0.7,
		HashBits:   phash.DefaultHashBits,
	}
}

// Image is one submitted photo, identified by its position in the original
// submission order.
type Image struct {
	Index       int
	Fingerprint string
}

// Candidate is one expected workbook page available for assignment.
type Candidate struct {
	PageNumber  int
	Fingerprint string
}

// Result records the assignment decided for one submitted image. PageNumber
// is nil when no expected page could be matched.
type Result struct {
	Index      int
	PageNumber *int
	Similarity float64
	Passed     bool
}

// Assign maps every image onto at most one expected page. startPage is the
// lowest page number the student has not yet passed; pages below it are only
// reachable through the fallback scan. Results come back in original
// submission order and each expected page is consumed at most once.
func Assign(images []Image, pages []Candidate, startPage int, th Thresholds) []Result {
	if startPage < 1 {
		startPage = 1
	}

	ordered := make([]Candidate, len(pages))
	copy(ordered, pages)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PageNumber < ordered[j].PageNumber
	})

	consumed := make(map[int]bool, len(ordered))
	results := make([]Result, 0, len(images))

	for _, image := range images {
		result := Result{Index: image.Index}

		if candidate, similarity, ok := sequentialScan(image, ordered, startPage, consumed, th); ok {
			consumed[candidate.PageNumber] = true
			page := candidate.PageNumber
			result.PageNumber = &page
			result.Similarity = similarity
			result.Passed = true
		} else if candidate, similarity, ok := fallbackScan(image, ordered, consumed, th); ok {
			consumed[candidate.PageNumber] = true
			page := candidate.PageNumber
			result.PageNumber = &page
			result.Similarity = similarity
			result.Passed = true
		}

		results = append(results, result)
	}

	return results
}

// sequentialScan walks the unconsumed pages at or above the start page and
// accepts the first one that clears the sequential threshold. A page without
// a canonical fingerprint is accepted on position alone.
func sequentialScan(image Image, ordered []Candidate, startPage int, consumed map[int]bool, th Thresholds) (Candidate, float64, bool) {
	for _, candidate := range ordered {
		if candidate.PageNumber < startPage || consumed[candidate.PageNumber] {
			continue
		}

		if candidate.Fingerprint == "" {
			return candidate, 0, true
		}

		similarity := phash.Similarity(image.Fingerprint, candidate.Fingerprint, th.HashBits)
		if similarity >= th.Sequential {
			return candidate, similarity, true
		}
	}

	return Candidate{}, 0, false
}

// fallbackScan searches every unconsumed page, including those below the
// start page, for the single best similarity at or above the acceptance
// threshold.
func fallbackScan(image Image, ordered []Candidate, consumed map[int]bool, th Thresholds) (Candidate, float64, bool) {
	var (
		best      Candidate
		bestScore float64
		found     bool
	)

	for _, candidate := range ordered {
		if consumed[candidate.PageNumber] {
			continue
		}

		similarity := phash.Similarity(image.Fingerprint, candidate.Fingerprint, th.HashBits)
		if similarity < th.Acceptance {
			continue
		}

		if !found || similarity > bestScore {
			best = candidate
			bestScore = similarity
			found = true
		}
	}

	return best, bestScore, found
}
