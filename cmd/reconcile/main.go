package main

import (
	"fmt"
	"os"

	"github.com/pesio-ai/be-ap-reconciler/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
