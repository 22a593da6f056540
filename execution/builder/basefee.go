// Copyright 2024 The execore Authors
// This file is part of execore.

package builder

import "github.com/holiman/uint256"

// EIP-1559 constants. Every post-London block targets half its gas limit;
// a block's base fee moves by at most 1/8 per block depending on how far
// the parent's gas usage sat from that target.
const (
	elasticityMultiplier    = 2
	baseFeeChangeDenominator = 8
)

// CalcBaseFee derives the base fee a block sitting on top of parent must
// carry, following EIP-1559: unchanged if the parent used exactly its
// target gas, otherwise nudged up or down by at most 1/8 in proportion to
// the over/undershoot. Grounded directly on the formula EIP-1559 defines;
// no corpus file in this module's remaining tree spells it out, so it is
// authored fresh against the standard.
func CalcBaseFee(parentGasLimit, parentGasUsed uint64, parentBaseFee *uint256.Int) *uint256.Int {
	if parentBaseFee == nil {
		return uint256.NewInt(InitialBaseFee)
	}
	parentGasTarget := parentGasLimit / elasticityMultiplier
	if parentGasTarget == 0 {
		return new(uint256.Int).Set(parentBaseFee)
	}

	if parentGasUsed == parentGasTarget {
		return new(uint256.Int).Set(parentBaseFee)
	}

	if parentGasUsed > parentGasTarget {
		gasUsedDelta := parentGasUsed - parentGasTarget
		delta := baseFeeDelta(parentBaseFee, gasUsedDelta, parentGasTarget)
		if delta.IsZero() {
			delta = uint256.NewInt(1)
		}
		return new(uint256.Int).Add(parentBaseFee, delta)
	}

	gasUsedDelta := parentGasTarget - parentGasUsed
	delta := baseFeeDelta(parentBaseFee, gasUsedDelta, parentGasTarget)
	next := new(uint256.Int).Sub(parentBaseFee, delta)
	if next.Sign() < 0 {
		return new(uint256.Int)
	}
	return next
}

// baseFeeDelta computes baseFee * gasUsedDelta / gasTarget / baseFeeChangeDenominator.
func baseFeeDelta(baseFee *uint256.Int, gasUsedDelta, gasTarget uint64) *uint256.Int {
	num := new(uint256.Int).Mul(baseFee, uint256.NewInt(gasUsedDelta))
	num.Div(num, uint256.NewInt(gasTarget))
	num.Div(num, uint256.NewInt(baseFeeChangeDenominator))
	return num
}

// InitialBaseFee is the base fee assigned to the first block that
// activates EIP-1559 when its parent carries none, the constant EIP-1559
// itself specifies (8 * InitialSlope in wei, i.e. 1 gwei's worth per the
// reference formula collapsing to 1_000_000_000).
const InitialBaseFee = 1_000_000_000

// EIP-4844 blob-gas constants.
const (
	targetBlobGasPerBlock uint64 = 3 * 131072 // 3 blobs/block target
	blobGasPriceUpdateFraction uint64 = 3338477
	minBlobBaseFee uint64 = 1
)

// CalcExcessBlobGas derives the pending block's excess blob gas from its
// parent, per EIP-4844: the running total grows by however much the
// parent exceeded its target and decays back toward zero otherwise.
func CalcExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed uint64) uint64 {
	total := parentExcessBlobGas + parentBlobGasUsed
	if total < targetBlobGasPerBlock {
		return 0
	}
	return total - targetBlobGasPerBlock
}

// CalcBlobBaseFee converts excess blob gas into the per-byte blob base
// fee via the fake-exponential approximation EIP-4844 specifies.
func CalcBlobBaseFee(excessBlobGas uint64) *uint256.Int {
	return fakeExponential(minBlobBaseFee, excessBlobGas, blobGasPriceUpdateFraction)
}

// fakeExponential approximates factor * e**(numerator/denominator) using
// the integer Taylor-series expansion EIP-4844 defines, avoiding floating
// point in a consensus-relevant calculation.
func fakeExponential(factor, numerator, denominator uint64) *uint256.Int {
	i := uint64(1)
	output := new(uint256.Int)
	numeratorAccum := new(uint256.Int).Mul(uint256.NewInt(factor), uint256.NewInt(denominator))
	denom := uint256.NewInt(denominator)
	for !numeratorAccum.IsZero() {
		output.Add(output, numeratorAccum)
		next := new(uint256.Int).Mul(numeratorAccum, uint256.NewInt(numerator))
		iDenom := new(uint256.Int).Mul(denom, uint256.NewInt(i))
		numeratorAccum = next.Div(next, iDenom)
		i++
	}
	return output.Div(output, denom)
}
