package main

import "github.com/vorn/vorn/internal/cli"

func main() {
	cli.Execute()
}
