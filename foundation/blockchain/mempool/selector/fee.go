package selector

import (
	"sort"
)

// feeSelect returns the transactions paying the highest fees first.
var feeSelect = func(candidates []Candidate, howMany int) []Candidate {
	sort.Sort(byFee(candidates))
	return take(candidates, howMany)
}
