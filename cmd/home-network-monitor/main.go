package main

import (
	"os"

	"github.com/monorkin/home-network-monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
