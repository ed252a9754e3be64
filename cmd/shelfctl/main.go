package main

import (
	"os"

	"github.com/shelfbalance/stock-rebalancer-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
