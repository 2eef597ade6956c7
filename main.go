package main

import "github.com/ethpandaops/userop-simulator/cmd"

func main() {
	cmd.Execute()
}
