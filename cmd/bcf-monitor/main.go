package main

import "github.com/boylston-chess/bcf-monitor/internal/cli"

func main() {
	cli.Execute()
}
