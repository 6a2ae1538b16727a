package main

import "github.com/reserve-protocol/soltrace/cmd"

func main() {
	cmd.Execute()
}
