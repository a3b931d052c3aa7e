// Command aptos runs the liquidation and price-oracle bot against Aptos.
package main

import (
	"fmt"
	"os"

	"scale-bot/internal/cliapp"
)

func main() {
	if err := cliapp.NewRootCmd("aptos").Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
