package main

import "github.com/mcoot/noughts/internal/cli"

func main() {
	cli.Execute()
}
