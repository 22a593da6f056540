// Copyright 2024 The execore Authors
// This file is part of execore.

// Command execore is a single-transaction state-transition runner: given
// a pre-state allocation, the pending header's fields as command-line
// flags and one RLP-encoded transaction, it applies the transaction and prints the resulting
// receipt and post-state root. It plays the same t8n role erigon's own
// cmd/* tools play for the production client, scaled down to one
// transaction at a time instead of a whole block/chain import.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/protocol"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/execution/vm"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/log"
)

var (
	allocFlag = &cli.StringFlag{
		Name:     "alloc",
		Usage:    "path to a JSON pre-state allocation (address -> {balance, nonce, code})",
		Required: true,
	}
	txFlag = &cli.StringFlag{
		Name:     "tx",
		Usage:    "hex-encoded EIP-2718 transaction envelope to apply",
		Required: true,
	}
	hardforkFlag = &cli.StringFlag{
		Name:  "hardfork",
		Usage: "hardfork to evaluate the transaction under",
		Value: string(chain.Cancun),
	}
	numberFlag = &cli.Uint64Flag{Name: "number", Usage: "pending block number", Value: 1}
	timeFlag   = &cli.Uint64Flag{Name: "time", Usage: "pending block timestamp", Value: 0}
	gasLimitFlag = &cli.Uint64Flag{Name: "gas-limit", Usage: "block gas limit", Value: 30_000_000}
	baseFeeFlag  = &cli.Uint64Flag{Name: "base-fee", Usage: "block base fee per gas, 0 for pre-London", Value: 1_000_000_000}
	coinbaseFlag = &cli.StringFlag{Name: "coinbase", Usage: "block coinbase address", Value: "0x0000000000000000000000000000000000000000"}
)

func main() {
	app := cli.NewApp()
	app.Name = "execore"
	app.Usage = "execution-layer state-transition and chain-parameter tooling"
	app.Commands = []*cli.Command{
		&t8nCommand,
		&forkIDCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Root().Error("execore exited with an error", "err", err)
		os.Exit(1)
	}
}

var t8nCommand = cli.Command{
	Name:  "t8n",
	Usage: "apply one transaction against a pre-state allocation and print the receipt",
	Flags: []cli.Flag{allocFlag, txFlag, hardforkFlag, numberFlag, timeFlag, gasLimitFlag, baseFeeFlag, coinbaseFlag},
	Action: func(c *cli.Context) error {
		config, err := chainConfigFor(chain.Hardfork(c.String(hardforkFlag.Name)))
		if err != nil {
			return err
		}

		sm, err := loadAlloc(c.String(allocFlag.Name))
		if err != nil {
			return fmt.Errorf("loading alloc: %w", err)
		}

		txBytes, err := hex.DecodeString(trimHexPrefix(c.String(txFlag.Name)))
		if err != nil {
			return fmt.Errorf("decoding tx hex: %w", err)
		}
		tx, err := types.DecodeTransaction(txBytes)
		if err != nil {
			return fmt.Errorf("decoding tx envelope: %w", err)
		}

		header := &types.Header{
			Number:     c.Uint64(numberFlag.Name),
			Time:       c.Uint64(timeFlag.Name),
			GasLimit:   c.Uint64(gasLimitFlag.Name),
			Coinbase:   common.HexToAddress(c.String(coinbaseFlag.Name)),
			Difficulty: new(uint256.Int),
		}
		rules, err := config.Rules(header.Number, header.Time)
		if err != nil {
			return err
		}
		if rules.IsLondon {
			header.BaseFee = uint256.NewInt(c.Uint64(baseFeeFlag.Name))
		}

		gp := protocol.GasPool(0)
		gp.AddGas(header.GasLimit)

		evm := protocol.NewEVMForHeader(header, func(uint64) common.Hash { return common.Hash{} }, sm, config, &rules, vm.Config{})

		receipt, err := protocol.ApplyTransaction(config, &rules, evm, &gp, header, tx, 0, 0)
		if err != nil {
			return fmt.Errorf("applying transaction: %w", err)
		}

		root, err := sm.GetStateRoot()
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(t8nResult{
			StateRoot: root.Hex(),
			GasUsed:   receipt.GasUsed,
			Status:    receipt.Status,
			LogsBloom: receipt.Bloom.Hex(),
		})
	},
}

var forkIDCommand = cli.Command{
	Name:  "fork-id",
	Usage: "print the EIP-2124 fork hash for a hardfork schedule",
	Flags: []cli.Flag{hardforkFlag},
	Action: func(c *cli.Context) error {
		config, err := chainConfigFor(chain.Hardfork(c.String(hardforkFlag.Name)))
		if err != nil {
			return err
		}
		id := config.CurrentForkID(common.Hash{})
		fmt.Fprintf(os.Stdout, "0x%x (next %d)\n", id.Hash, id.Next)
		return nil
	},
}

type t8nResult struct {
	StateRoot string `json:"stateRoot"`
	GasUsed   uint64 `json:"gasUsed"`
	Status    uint64 `json:"status"`
	LogsBloom string `json:"logsBloom"`
}

type allocEntry struct {
	Balance string            `json:"balance"`
	Nonce   uint64            `json:"nonce"`
	Code    string            `json:"code"`
	Storage map[string]string `json:"storage"`
}

func loadAlloc(path string) (*state.MemoryState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries map[string]allocEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	sm := state.NewMemoryState()
	for addrHex, entry := range entries {
		addr := common.HexToAddress(addrHex)
		balance := new(uint256.Int)
		if err := balance.SetFromDecimal(entry.Balance); err != nil {
			return nil, fmt.Errorf("alloc %s: invalid balance %q", addrHex, entry.Balance)
		}
		acct := state.NewEmptyAccount()
		acct.Nonce = entry.Nonce
		acct.Balance = *balance
		if err := sm.PutAccount(addr, &acct); err != nil {
			return nil, err
		}
		if entry.Code != "" {
			code, err := hex.DecodeString(trimHexPrefix(entry.Code))
			if err != nil {
				return nil, fmt.Errorf("alloc %s: invalid code: %w", addrHex, err)
			}
			if err := sm.PutContractCode(addr, code); err != nil {
				return nil, err
			}
		}
		for k, v := range entry.Storage {
			if err := sm.PutContractStorage(addr, common.HexToHash(k), common.HexToHash(v)); err != nil {
				return nil, err
			}
		}
	}
	return sm, nil
}

func chainConfigFor(hf chain.Hardfork) (*chain.Config, error) {
	schedule := map[chain.Hardfork]chain.Activation{
		chain.Frontier: chain.AtBlock(0),
	}
	order := []chain.Hardfork{chain.Homestead, chain.TangerineWhistle, chain.SpuriousDragon,
		chain.Byzantium, chain.Constantinople, chain.Petersburg, chain.Istanbul, chain.Berlin,
		chain.London, chain.Shanghai, chain.Cancun}
	for _, candidate := range order {
		schedule[candidate] = chain.AtBlock(0)
		if candidate == hf {
			break
		}
	}
	return chain.NewConfig(big.NewInt(1), "execore-t8n", 1, common.Hash{}, schedule, nil)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
