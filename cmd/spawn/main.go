package main

import "github.com/Paintersrp/spawn/internal/cli"

func main() {
	cli.Execute()
}
