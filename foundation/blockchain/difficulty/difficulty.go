// Package difficulty implements the proof of work target and the rules for
// retargeting it as blocks are added to the chain.
package difficulty

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// Target is the 32 byte big endian threshold a block hash must not exceed.
type Target [32]byte

// Params represents the settings used to retarget the difficulty.
type Params struct {
	TargetBlockTime    uint64 // Desired seconds between blocks.
	AdjustmentInterval uint64 // Number of blocks between adjustments.
	Precision          uint   // Decimal places kept by the fixed point ratio.
}

// Chain represents the behavior required to retarget against a sequence
// of blocks.
type Chain interface {
	Height() uint64
	Timestamp(height uint64) uint64
}

// maxTarget is the easiest possible target, all bits set.
var maxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// =============================================================================

// FromLeadingZeroBytes constructs a target where the first n bytes are zero
// and the remaining bytes are 0xFF.
func FromLeadingZeroBytes(n int) (Target, error) {
	if n < 0 || n > 32 {
		return Target{}, fmt.Errorf("leading zero bytes must be between 0 and 32, got %d", n)
	}

	var t Target
	for i := n; i < len(t); i++ {
		t[i] = 0xFF
	}

	return t, nil
}

// Satisfies reports whether the hash is less than or equal to the target
// when both are read as big endian numbers. The first differing byte decides.
func Satisfies(target Target, hash [32]byte) bool {
	for i := range target {
		switch {
		case hash[i] > target[i]:
			return false
		case hash[i] < target[i]:
			return true
		}
	}

	return true
}

// Retarget computes the target for the next block. Unless the chain height
// is a positive multiple of the adjustment interval the current target is
// returned. Otherwise the target is scaled by the inverse of the ratio
// between the desired and the observed time for the last interval.
func Retarget(chain Chain, current Target, p Params) Target {
	height := chain.Height()
	if p.AdjustmentInterval == 0 || height < p.AdjustmentInterval || height%p.AdjustmentInterval != 0 {
		return current
	}

	first := chain.Timestamp(height - p.AdjustmentInterval)
	last := chain.Timestamp(height - 1)

	actual := uint64(1)
	if last > first {
		actual = last - first
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Precision)), nil)

	// ratio = (target_time * interval) / actual, kept in fixed point.
	ratio := new(big.Int).SetUint64(p.TargetBlockTime)
	ratio.Mul(ratio, new(big.Int).SetUint64(p.AdjustmentInterval))
	ratio.Mul(ratio, scale)
	ratio.Div(ratio, new(big.Int).SetUint64(actual))

	// A ratio that rounds to zero means blocks are arriving extremely slowly.
	if ratio.Sign() == 0 {
		return fromBig(maxTarget)
	}

	next := new(big.Int).SetBytes(current[:])
	next.Mul(next, scale)
	next.Div(next, ratio)

	return fromBig(next)
}

// =============================================================================

// String returns the hex representation of the target.
func (t Target) String() string {
	return hex.EncodeToString(t[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (t *Target) UnmarshalText(data []byte) error {
	b, err := hex.DecodeString(string(data))
	if err != nil {
		return err
	}

	if len(b) != len(t) {
		return errors.New("target must be 32 bytes")
	}

	copy(t[:], b)
	return nil
}

// LeadingZeroBits returns the number of leading zero bits in the target.
// It provides a rough human readable measure of the difficulty.
func (t Target) LeadingZeroBits() int {
	return 256 - new(big.Int).SetBytes(t[:]).BitLen()
}

// fromBig converts the integer into a target clamped to [1, 2^256-1].
func fromBig(v *big.Int) Target {
	switch {
	case v.Cmp(maxTarget) > 0:
		v = maxTarget
	case v.Sign() <= 0:
		v = big.NewInt(1)
	}

	var t Target
	v.FillBytes(t[:])

	return t
}
