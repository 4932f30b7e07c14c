// Package genesis maintains access to the genesis file that defines the
// consensus parameters of the chain.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date               time.Time `json:"date"`
	ChainID            uint16    `json:"chain_id"`            // The chain id represents an unique id for this running instance.
	TargetBlockTime    uint64    `json:"target_block_time"`   // Desired number of seconds between blocks.
	AdjustmentInterval uint64    `json:"adjustment_interval"` // Number of blocks between difficulty adjustments.
	Precision          uint      `json:"precision"`           // Decimal places used by the retarget ratio.
	HalvingInterval    uint64    `json:"halving_interval"`    // Number of blocks between reward halvings.
	StartReward        uint64    `json:"start_reward"`        // Reward for mining a block before any halving.
	CryptoPrecision    uint      `json:"crypto_precision"`    // Decimal places of the smallest coin unit.
	StartDifficulty    int       `json:"start_difficulty"`    // Leading zero bytes of the first target.
	BlockTxLimit       int       `json:"block_tx_limit"`      // Maximum number of mempool transactions in a block.
}

// Default returns the parameters used when no genesis file is provided.
func Default() Genesis {
	const cryptoPrecision = 3

	return Genesis{
		ChainID:            1,
		TargetBlockTime:    2,
		AdjustmentInterval: 30,
		Precision:          5,
		HalvingInterval:    43_200,
		StartReward:        3_000 * pow10(cryptoPrecision),
		CryptoPrecision:    cryptoPrecision,
		StartDifficulty:    1,
		BlockTxLimit:       1_000,
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the parameters are usable.
func (g Genesis) Validate() error {
	switch {
	case g.TargetBlockTime == 0:
		return fmt.Errorf("target_block_time must be positive")
	case g.AdjustmentInterval == 0:
		return fmt.Errorf("adjustment_interval must be positive")
	case g.HalvingInterval == 0:
		return fmt.Errorf("halving_interval must be positive")
	case g.BlockTxLimit < 0:
		return fmt.Errorf("block_tx_limit can't be negative")
	}

	if _, err := difficulty.FromLeadingZeroBytes(g.StartDifficulty); err != nil {
		return err
	}

	return nil
}

// Params returns the retarget settings.
func (g Genesis) Params() difficulty.Params {
	return difficulty.Params{
		TargetBlockTime:    g.TargetBlockTime,
		AdjustmentInterval: g.AdjustmentInterval,
		Precision:          g.Precision,
	}
}

// StartTarget returns the target used by the first block of the chain.
func (g Genesis) StartTarget() difficulty.Target {
	t, err := difficulty.FromLeadingZeroBytes(g.StartDifficulty)
	if err != nil {
		t, _ = difficulty.FromLeadingZeroBytes(1)
	}
	return t
}

func pow10(n uint) uint64 {
	v := uint64(1)
	for range n {
		v *= 10
	}
	return v
}
