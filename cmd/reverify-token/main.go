package main

import (
	"flag"
	"os"

	"github.com/louisbranch/reverify/internal/platform/config"
	"github.com/louisbranch/reverify/internal/tools/sessiontoken"
)

func main() {
	cfg, err := sessiontoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := sessiontoken.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("mint token: %v", err)
	}
}
