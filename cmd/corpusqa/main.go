package main

import (
	"fmt"
	"os"

	"github.com/corpusqa/corpusqa/cmd/corpusqa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
