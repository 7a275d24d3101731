// Command subalignd starts the alignment server with the default
// configuration and opens the browser, mirroring `subalign serve`.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"subalign/internal/config"
	"subalign/internal/daemonrun"
)

var version = "dev"

func main() {
	cfg, _, _, err := config.Load(os.Getenv("SUBALIGN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{Version: version}); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
