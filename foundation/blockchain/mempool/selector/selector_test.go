package selector_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func candidate(seq uint64, fee uint64) selector.Candidate {
	return selector.Candidate{
		Tx:  database.Tx{Nonce: seq},
		Fee: fee,
		Seq: seq,
	}
}

func Test_Select(t *testing.T) {
	type table struct {
		name     string
		strategy string
		howMany  int
		best     []uint64
	}

	tt := []table{
		{name: "fee-all", strategy: selector.StrategyFee, howMany: -1, best: []uint64{3, 1, 0, 4, 2}},
		{name: "fee-two", strategy: selector.StrategyFee, howMany: 2, best: []uint64{3, 1}},
		{name: "fee-too-many", strategy: selector.StrategyFee, howMany: 50, best: []uint64{3, 1, 0, 4, 2}},
		{name: "fifo-three", strategy: selector.StrategyFIFO, howMany: 3, best: []uint64{0, 1, 2}},
		{name: "none", strategy: selector.StrategyFee, howMany: 0, best: []uint64{}},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen selecting with the %s strategy.", testID, tst.name)
			{
				f := func(t *testing.T) {
					candidates := []selector.Candidate{
						candidate(2, 5),
						candidate(0, 10),
						candidate(3, 100),
						candidate(1, 50),
						candidate(4, 10),
					}

					fn, err := selector.Retrieve(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get select strategy function: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to get select strategy function.", success, testID)

					got := fn(candidates, tst.howMany)
					if len(got) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get %d transactions, got %d.", failed, testID, len(tst.best), len(got))
					}

					for i, c := range got {
						if c.Seq != tst.best[i] {
							t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, c.Seq)
							t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the right order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right order.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Retrieve(t *testing.T) {
	t.Log("Given the need to look up select strategies.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for an unknown strategy.", testID)
		{
			if _, err := selector.Retrieve("tip"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould get an error.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get an error.", success, testID)
		}
	}
}
