// Bellhop-client - the interactive reservation console.
//
// Connects to the gateway, prompts for login, and then loops on
// availability and reservation requests until EOF.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/client"
	"github.com/bellhop-project/bellhop/internal/config"
)

func main() {
	addr := flag.String("gateway", "", "gateway TCP address (defaults to the configured one)")
	flag.Parse()

	// The client is a console tool; keep log output out of the prompts.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	target := *addr
	if target == "" {
		cfg, err := config.Load(config.DefaultConfigDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		gw := cfg.GetGateway()
		target = fmt.Sprintf("%s:%d", gw.Host, gw.ClientPort)
	}

	c := client.New(os.Stdin)
	if err := c.Connect(target); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Run(); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
