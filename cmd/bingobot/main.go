package main

import (
	"fmt"
	"os"

	"github.com/m3rciful/bingobot/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bingobot:", err)
		os.Exit(1)
	}
}
