package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"WaveSentinel/internal/cli"
)

func main() {
	_ = godotenv.Load()
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
