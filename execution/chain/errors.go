// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import "errors"

var (
	ErrUnknownHardfork       = errors.New("chain: unknown hardfork")
	ErrHardforkMismatch      = errors.New("chain: hardfork mismatch between block-derived and TTD-derived selection")
	ErrMultipleMergeHardfork = errors.New("chain: more than one hardfork carries a terminal total difficulty")
	ErrMustHaveHFAtZero      = errors.New("chain: no hardfork is active at block 0")
	ErrUnknownEIP            = errors.New("chain: unknown EIP")
	ErrEIPPrerequisiteMissing = errors.New("chain: EIP prerequisite not satisfied")
)
