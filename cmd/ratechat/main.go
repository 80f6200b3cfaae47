package main

import (
	"os"

	"github.com/mkovalchuk/ratechat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
