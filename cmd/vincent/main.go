package main

import (
	"fmt"
	"log"
	"os"

	"github.com/langenhagen/vincent/internal/cli"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}
