package main

import "github.com/TruWeaveTrader/cointeg/cmd"

func main() {
	cmd.Execute()
}
