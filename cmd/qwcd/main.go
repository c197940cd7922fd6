// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from cmd/kcn/main.go: the same cli.App shell
// (cli.NewApp with global flags and a subcommand list; no Before/After
// hooks are set) wraps a very different body, since qwcd has no accounts/console/RPC
// subsystem to wire — just the blockchain engine, pool, and p2p server.
package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fjl/memsize/memsizeui"
	"github.com/peterh/liner"
	"github.com/urfave/cli"

	"github.com/qwertycoin-project/qwc-node/blockchain"
	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/config"
	"github.com/qwertycoin-project/qwc-node/consensus"
	"github.com/qwertycoin-project/qwc-node/crypto"
	"github.com/qwertycoin-project/qwc-node/log"
	"github.com/qwertycoin-project/qwc-node/p2p"
	"github.com/qwertycoin-project/qwc-node/storage"
	"github.com/qwertycoin-project/qwc-node/storage/mmapstore"
	"github.com/qwertycoin-project/qwc-node/storage/sqlstore"
	"github.com/qwertycoin-project/qwc-node/txpool"
	"github.com/qwertycoin-project/qwc-node/work"
)

var logger = log.NewModuleLogger(log.CLI)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "p2p listen address, overrides the config file",
	}
	coinbaseFlag = cli.StringFlag{
		Name:  "coinbase",
		Usage: "hex-encoded public key credited by start_mining",
	}
	debugAddrFlag = cli.StringFlag{
		Name:  "debugaddr",
		Usage: "if set, serves pprof and a memsize inspector (/memsize/) on this address",
	}

	memsize memsizeui.Handler

	app = newApp()
)

func newApp() *cli.App {
	a := cli.NewApp()
	a.Name = "qwcd"
	a.Usage = "qwertycoin-project full node daemon"
	a.Flags = []cli.Flag{configFileFlag, listenFlag, coinbaseFlag, debugAddrFlag}
	a.Action = run
	a.Commands = []cli.Command{dumpConfigCommand}
	sort.Sort(cli.CommandsByName(a.Commands))
	return a
}

var dumpConfigCommand = cli.Command{
	Name:  "dumpconfig",
	Usage: "show the configuration qwcd would start with",
	Flags: []cli.Flag{configFileFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		return config.Load(file)
	}
	if file := ctx.String(configFileFlag.Name); file != "" {
		return config.Load(file)
	}
	return config.Default(), nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// daemon bundles everything the interactive shell commands need.
type daemon struct {
	chain *blockchain.Blockchain
	pool  *txpool.Pool
	srv   *p2p.Server
	miner *work.Miner
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("qwcd: loading config: %w", err)
	}
	if addr := ctx.GlobalString(listenFlag.Name); addr != "" {
		cfg.P2P.ListenAddr = addr
	}

	store, err := openStore(cfg.Chain)
	if err != nil {
		return fmt.Errorf("qwcd: opening storage: %w", err)
	}

	pool := txpool.New(
		secondsToDuration(cfg.Pool.TimeoutSeconds),
		secondsToDuration(cfg.Pool.DeletedWindowSeconds),
		nil,
	)

	checkpoints, err := parseCheckpoints(cfg.Chain.Checkpoints)
	if err != nil {
		return fmt.Errorf("qwcd: parsing checkpoints: %w", err)
	}

	chain, err := blockchain.New(blockchain.Config{
		Store:             store,
		Pool:              pool,
		Checkpoints:       checkpoints,
		DifficultyVariant: cfg.Chain.DifficultyVariant,
		MedianWindow:      cfg.Chain.MedianWindow,
	}, genesisBlock())
	if err != nil {
		return fmt.Errorf("qwcd: bootstrapping chain: %w", err)
	}

	peerList, err := p2p.OpenPeerListManager(cfg.P2P.PeerListDir)
	if err != nil {
		return fmt.Errorf("qwcd: opening peer list: %w", err)
	}
	defer peerList.Close()

	bans, err := p2p.NewBanList(cfg.P2P.BanFile)
	if err != nil {
		return fmt.Errorf("qwcd: opening ban list: %w", err)
	}
	defer bans.Close()

	genesisHash := genesisBlock().ID()
	srv := p2p.NewServer(p2p.Config{
		ListenAddr:  cfg.P2P.ListenAddr,
		GenesisHash: genesisHash,
		Chain:       chain,
		Pool:        pool,
		PeerList:    peerList,
		Bans:        bans,
		MaxPeers:    cfg.P2P.MaxPeers,
	})

	var coinbase crypto.PublicKey
	if hexKey := ctx.GlobalString(coinbaseFlag.Name); hexKey != "" {
		coinbase, err = parsePublicKey(hexKey)
		if err != nil {
			return fmt.Errorf("qwcd: parsing coinbase: %w", err)
		}
	}
	miner := work.New(chain, pool, coinbase, consensus.BlockMajorVersion4, func(block *types.Block, hash crypto.Hash) {
		srv.BroadcastMined(block, hash)
	})

	if addr := ctx.GlobalString(debugAddrFlag.Name); addr != "" {
		memsize.Add("chain", chain)
		memsize.Add("pool", pool)
		memsize.Add("p2p", srv)
		http.Handle("/memsize/", http.StripPrefix("/memsize", &memsize))
		go func() {
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Error("qwcd: debug server stopped", "err", err)
			}
		}()
	}

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("qwcd: p2p server stopped", "err", err)
		}
	}()
	for _, addr := range cfg.P2P.Bootnodes {
		addr := addr
		go func() {
			if err := srv.Dial(addr); err != nil {
				logger.Debug("qwcd: dial bootnode failed", "addr", addr, "err", err)
			}
		}()
	}
	defer srv.Shutdown()

	d := &daemon{chain: chain, pool: pool, srv: srv, miner: miner}
	return d.shell(bans)
}

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func openStore(cfg config.ChainConfig) (storage.BlockStore, error) {
	switch cfg.StorageBackend {
	case config.StorageSQL:
		return sqlstore.Open(cfg.SQLDataSource)
	case config.StorageMmap, "":
		return mmapstore.Open(cfg.DataDir)
	default:
		return nil, fmt.Errorf("qwcd: unknown storage backend %q", cfg.StorageBackend)
	}
}

func parseCheckpoints(raw map[uint64]string) (*consensus.Checkpoints, error) {
	points := make(map[uint64]crypto.Hash, len(raw))
	for height, hexHash := range raw {
		hash, err := parseHash(hexHash)
		if err != nil {
			return nil, fmt.Errorf("height %d: %w", height, err)
		}
		points[height] = hash
	}
	return consensus.NewCheckpoints(points), nil
}

func parseHash(s string) (crypto.Hash, error) {
	var h crypto.Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

func parsePublicKey(s string) (crypto.PublicKey, error) {
	var k crypto.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("expected %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// genesisBlock is this network's compiled-in genesis block: a single
// major-version-1 block with no proof-of-work requirement (checkpointed
// implicitly by every node bootstrapping from it) and a zero-value miner
// key, mirroring the CryptoNote convention of hard-coding
// GENESIS_COINBASE_TX_HEX rather than mining a real genesis.
func genesisBlock() *types.Block {
	return &types.Block{
		Header: types.BlockHeader{MajorVersion: 1, Timestamp: 1341378000},
		BaseTransaction: types.Transaction{
			Prefix: types.TransactionPrefix{
				Version: 1,
				Inputs:  []types.TransactionInput{types.CoinbaseInput{BlockIndex: 0}},
				Outputs: []types.TransactionOutput{{
					Amount: blockchain.BaseReward(0),
					Target: types.KeyOutputTarget{Key: crypto.PublicKey{}},
				}},
			},
		},
	}
}

// shell runs the interactive command loop named by §6: help, status,
// print_bc, print_block, print_tx, start_mining, stop_mining, ban, unban,
// exit. Grounded on the teacher's console package's line-editing use of
// peterh/liner, simplified to a direct read-dispatch loop since this
// daemon has no JS console to embed commands into.
func (d *daemon) shell(bans *p2p.BanList) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("qwcd> ")
		if err != nil {
			return nil // EOF or Ctrl-C: shut down cleanly
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		cmd, args := fields[0], fields[1:]
		if cmd == "exit" || cmd == "quit" {
			return nil
		}
		if err := d.dispatch(cmd, args, bans); err != nil {
			fmt.Fprintln(os.Stderr, "qwcd:", err)
		}
	}
}

func (d *daemon) dispatch(cmd string, args []string, bans *p2p.BanList) error {
	switch cmd {
	case "help":
		fmt.Println("commands: help status print_bc print_block <height> print_tx <hash> start_mining stop_mining ban <ip> unban <ip> exit")
		return nil
	case "status":
		tip, err := d.chain.GetTopBlock()
		if err != nil {
			return err
		}
		fmt.Printf("height=%d top=%s peers=%d pool=%d mining=%v\n",
			tip.Height, tip.Hash, d.srv.PeerCount(), d.pool.Size(), d.miner.Mining())
		return nil
	case "print_bc":
		tip, err := d.chain.GetTopBlock()
		if err != nil {
			return err
		}
		fmt.Printf("main chain height=%d top=%s\n", tip.Height, tip.Hash)
		return nil
	case "print_block":
		if len(args) != 1 {
			return fmt.Errorf("usage: print_block <height>")
		}
		height, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		block, ok, err := d.chain.GetBlockByHeight(height)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no block at height %d", height)
		}
		fmt.Printf("height=%d id=%s txs=%d\n", height, block.ID(), len(block.TransactionHashes))
		return nil
	case "print_tx":
		if len(args) != 1 {
			return fmt.Errorf("usage: print_tx <hash>")
		}
		hash, err := parseHash(args[0])
		if err != nil {
			return err
		}
		tx, ok := d.pool.Lookup(hash)
		if !ok {
			return fmt.Errorf("transaction %s not found in pool", args[0])
		}
		fmt.Printf("tx=%s inputs=%d outputs=%d\n", args[0], len(tx.Prefix.Inputs), len(tx.Prefix.Outputs))
		return nil
	case "start_mining":
		d.miner.Start()
		fmt.Println("mining started")
		return nil
	case "stop_mining":
		d.miner.Stop()
		fmt.Println("mining stopped")
		return nil
	case "ban":
		if len(args) != 1 {
			return fmt.Errorf("usage: ban <ip>")
		}
		return bans.Ban(args[0])
	case "unban":
		if len(args) != 1 {
			return fmt.Errorf("usage: unban <ip>")
		}
		return bans.Unban(args[0])
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}
