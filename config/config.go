// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/logger"
)

const (
	defaultLogFilename = "ramiad.log"
	defaultDebugLevel  = "info"
)

// Config defines the configuration options for ramiad.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	SimNet      bool   `long:"simnet" description:"Use the simulation test network"`
	Generate    bool   `long:"generate" description:"Generate (mine) coins to the mining address"`
	MiningAddr  string `long:"miningaddr" description:"Identity the coinbase of mined blocks pays to"`
	SignalURL   string `long:"signalurl" description:"Base URL of a mempool.space-compatible congestion signal API; empty runs with zero-pressure signals"`
	NoLogRotate bool   `long:"nologrotate" description:"Disable the rotating log file"`

	// params is the resolved network, not a flag.
	params *chaincfg.Params
}

// Params returns the network parameters the configuration resolved to.
func (c *Config) Params() *chaincfg.Params {
	return c.params
}

// defaultHomeDir returns the default application home directory.
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ramiad")
}

// LoadConfig initializes and parses the config using command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Parse CLI options and overwrite/add any specified options
//  3. Resolve the network and finalize the data and log directories
//
// It also initializes logging and sets it up accordingly.
func LoadConfig() (*Config, []string, error) {
	homeDir := defaultHomeDir()
	cfg := &Config{
		DataDir:    filepath.Join(homeDir, "data"),
		LogDir:     filepath.Join(homeDir, "logs"),
		DebugLevel: defaultDebugLevel,
	}

	parser := flags.NewParser(cfg, flags.Default)
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	cfg.params = &chaincfg.MainNetParams
	if cfg.SimNet {
		cfg.params = &chaincfg.SimNetParams
	}

	// Append the network name to the data and log directories so it is
	// "namespaced" per network.
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.params.Name)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.params.Name)

	if cfg.Generate && cfg.MiningAddr == "" {
		return nil, nil, errors.New("the generate flag requires a mining " +
			"address via --miningaddr")
	}

	// Initialize log rotation. After it is initialized, anything logged
	// through the subsystem loggers lands in the log file as well.
	if !cfg.NoLogRotate {
		logger.InitLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	}

	// Parse, validate, and set debug log level(s).
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, errors.Wrap(err, "couldn't set debug levels")
	}

	return cfg, remainingArgs, nil
}
