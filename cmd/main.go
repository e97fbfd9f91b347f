package main

import "github.com/dyike/QuantDesk/internal/cli"

func main() {
	cli.Run()
}
