package main

import "github.com/vietddude/blockscan/internal/cli"

func main() {
	cli.Execute()
}
