package main

import (
	"github.com/easyfolio/easyfolio/internal/cli"
)

func main() {
	cli.Run()
}
