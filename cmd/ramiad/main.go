// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramianet/ramiad/config"
	"github.com/ramianet/ramiad/logger"
	"github.com/ramianet/ramiad/node"
	ramiasignal "github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.RAMD)
var spawn = panics.GoroutineWrapperFunc(log)

// ramiadMain is the real main function for ramiad. It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func ramiadMain() error {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	var collector ramiasignal.Collector
	if cfg.SignalURL != "" {
		collector = ramiasignal.NewHTTPCollector(cfg.SignalURL,
			cfg.Params().SignalTimeout)
	}

	n, err := node.New(&node.Config{
		Params:    cfg.Params(),
		DataDir:   cfg.DataDir,
		Collector: collector,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Errorf("Couldn't close node cleanly: %s", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	spawn(func() {
		<-interrupt
		log.Infof("Received interrupt, shutting down...")
		cancel()
	})

	tip := n.Tip()
	log.Infof("Tip at height %d (%s)", tip.Height, tip.Hash)

	if !cfg.Generate {
		// Without mining enabled there is nothing to drive; block
		// until interrupted so front-ends layered on the node surface
		// keep a live handle.
		<-ctx.Done()
		return nil
	}

	for ctx.Err() == nil {
		result, err := n.Mine(ctx, cfg.MiningAddr)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		log.Infof("Mined block %d: subsidy %d, fees %d, ledger seq %d",
			result.Block.Height, result.Subsidy, result.FeesTotal,
			result.LedgerEntry.Seq)
	}
	return nil
}

func main() {
	if err := ramiadMain(); err != nil {
		fmt.Fprintf(os.Stderr, "ramiad: %s\n", err)
		os.Exit(1)
	}
}
