package main

import "github.com/ogulcanaydogan/finalert/internal/cli"

func main() {
	cli.Execute()
}
