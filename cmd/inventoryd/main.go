// Inventoryd - one partition of the room inventory.
//
// Each inventoryd process loads its partition's room file, announces the
// inventory to the gateway once, and then answers the gateway's
// forwarded availability and reservation requests over UDP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/inventory"
	"github.com/bellhop-project/bellhop/internal/util"
)

func main() {
	partition := flag.String("partition", "", "partition to serve (e.g. S, D, U)")
	dataFile := flag.String("data", "", "inventory file override (defaults to the partition's configured file)")
	flag.Parse()

	if *partition == "" {
		fmt.Fprintln(os.Stderr, "usage: inventoryd -partition <name> [-data <file>]")
		os.Exit(2)
	}

	if err := util.InitLogger("inventoryd-"+*partition, util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging := cfg.GetApplicationData().Logging
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger("inventoryd-"+*partition, logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	part, ok := cfg.Partition(*partition)
	if !ok {
		log.Fatal().Str("partition", *partition).Msg("partition not in configuration")
	}

	file := part.DataFile
	if *dataFile != "" {
		file = *dataFile
	}

	records, err := inventory.LoadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("failed to load inventory file")
	}

	table := inventory.NewTable()
	table.Load(records)
	log.Info().
		Str("partition", part.Name).
		Str("file", file).
		Int("rooms", len(records)).
		Msg("inventory loaded")

	gw := cfg.GetGateway()
	gatewayAddr := net.JoinHostPort(gw.Host, strconv.Itoa(gw.BackendPort))
	node, err := inventory.NewNode(part.Name, table, gatewayAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create inventory node")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := node.Bind(ctx, part.Addr()); err != nil {
		log.Fatal().Err(err).Msg("failed to bind")
	}

	if err := node.Announce(); err != nil {
		// The announcement is best-effort; the gateway routes to this
		// node from static configuration either way.
		log.Warn().Err(err).Msg("inventory announcement failed")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := node.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("serve failed")
	}

	log.Info().Msg("inventory node stopped")
}
