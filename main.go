package main

import (
	"os"

	"github.com/mikiest/github-dashboard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
