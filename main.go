package main

import (
	"github.com/dyike/tradecycle/internal/cli"
)

func main() {
	cli.Run()
}
