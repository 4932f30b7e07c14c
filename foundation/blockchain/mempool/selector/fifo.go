package selector

import (
	"sort"
)

// fifoSelect returns the transactions in the order they were admitted,
// ignoring the fee they pay.
var fifoSelect = func(candidates []Candidate, howMany int) []Candidate {
	sort.Sort(bySeq(candidates))
	return take(candidates, howMany)
}
