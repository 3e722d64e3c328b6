package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/autoreader/internal/config"
	"github.com/matheus3301/autoreader/internal/daemon"
	"github.com/matheus3301/autoreader/internal/datadir"
	"go.uber.org/fx"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "data directory (default $AUTOREADER_DATA_DIR or ~/.autoreader)")
	configFlag := flag.String("config", "", "config file (default <data-dir>/config.toml)")
	initFlag := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	layout := datadir.New(*dataDirFlag)
	configPath := *configFlag
	if configPath == "" {
		configPath = layout.ConfigPath()
	}

	if *initFlag {
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(os.Stderr, "error: %s already exists\n", configPath)
			os.Exit(1)
		}
		if err := layout.Ensure(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := config.Save(configPath, config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", configPath)
		return
	}

	cfg, err := config.Resolve(configPath, layout.EnvPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{DataDir: layout.Root, Config: cfg}),
	)

	app.Run()
}
