// Package config holds the node's explicit configuration struct and its
// TOML load/save path, grounded on the teacher's
// cmd/ranger/config.go (rangerConfig/loadConfig/tomlSettings), generalized
// from klaytn's node.Config to this node's own domain knobs. There is no
// package-level global: callers load a Config and thread it through
// explicitly, per Design Note "Global state".
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	perrors "github.com/pkg/errors"

	"github.com/qwertycoin-project/qwc-node/consensus"
)

// tomlSettings mirrors the teacher's field-name normalization: TOML keys
// use the same names as the Go struct fields, with no case-folding.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see the %s type for available fields", rt.String())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// StorageBackend selects which storage.BlockStore implementation the
// daemon opens.
type StorageBackend string

const (
	StorageMmap StorageBackend = "mmap"
	StorageSQL  StorageBackend = "sql"
)

// P2PConfig configures the p2p.Server and its supporting peer/ban state.
type P2PConfig struct {
	ListenAddr   string
	MaxPeers     int
	Bootnodes    []string
	PeerListDir  string
	BanFile      string
	NATGatewayIP string // gateway for p2p.DiscoverMapper's NAT-PMP attempt; the daemon does not read it
}

// ChainConfig configures the blockchain.Blockchain engine.
type ChainConfig struct {
	StorageBackend    StorageBackend
	DataDir           string
	SQLDataSource     string
	DifficultyVariant consensus.DifficultyVariant
	MedianWindow      int
	Checkpoints       map[uint64]string // height -> hex-encoded hash
}

// PoolConfig configures the txpool.Pool.
type PoolConfig struct {
	TimeoutSeconds       int
	DeletedWindowSeconds int
}

// Config is the complete, explicit node configuration. The zero value is
// not valid; use Default() and override from a TOML file.
type Config struct {
	Identity string
	LogLevel string

	Chain ChainConfig
	Pool  PoolConfig
	P2P   P2PConfig
}

// Default returns the configuration a freshly-initialized node starts
// from, analogous to the teacher's node.DefaultConfig.
func Default() Config {
	return Config{
		Identity: "qwcd",
		LogLevel: "info",
		Chain: ChainConfig{
			StorageBackend:    StorageMmap,
			DataDir:           "qwc-data",
			DifficultyVariant: consensus.DifficultyV5,
			MedianWindow:      100,
		},
		Pool: PoolConfig{
			TimeoutSeconds:       12 * 3600,
			DeletedWindowSeconds: 3600,
		},
		P2P: P2PConfig{
			ListenAddr:  "0.0.0.0:19800",
			MaxPeers:    64,
			PeerListDir: "qwc-data/peers",
			BanFile:     "qwc-data/bans.txt",
		},
	}
}

// Load reads and decodes a TOML configuration file on top of Default().
func Load(file string) (Config, error) {
	cfg := Default()
	f, err := os.Open(file)
	if err != nil {
		return cfg, perrors.Wrapf(err, "config: opening %s", file)
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		err = perrors.Wrapf(err, "config: %s", file)
	}
	return cfg, err
}

// Save writes cfg to file as TOML, overwriting any existing content.
func Save(file string, cfg Config) error {
	out, err := Dump(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(file, out, 0o644)
}

// Dump renders cfg as TOML, for the dumpconfig CLI command.
func Dump(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
