package main

import (
	"os"

	"appdex/internal/appdexcli"
)

func main() {
	if err := appdexcli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
