// Package main is the entry point for the laptime application
package main

import (
	"github.com/ethpandaops/laptime/cmd"
)

func main() {
	cmd.Execute()
}
