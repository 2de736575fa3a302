package main

import (
	"fmt"
	"os"

	"truth-or-dare-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tod:", err)
		os.Exit(1)
	}
}
