// Command sui runs the liquidation and price-oracle bot against Sui.
package main

import (
	"fmt"
	"os"

	"scale-bot/internal/cliapp"
)

func main() {
	if err := cliapp.NewRootCmd("sui").Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
