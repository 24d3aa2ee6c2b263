// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the geopicker command.
package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vorlif/spreak"

	"github.com/wneessen/geopicker/internal/config"
	"github.com/wneessen/geopicker/internal/i18n"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries the state shared by all subcommands.
type app struct {
	confPath string

	conf      *config.Config
	log       *logger.Logger
	t         *spreak.Localizer
	logCloser io.Closer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "geopicker",
		Short:         "pick a location and resolve it to an address",
		Version:       version + " (" + commit + ", " + date + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.confPath, "config", "", "path to the config file")
	root.AddCommand(newRunCmd(a), newPickCmd(a), newResolveCmd(a))
	return root
}

// init loads the .env file and the configuration and sets up logging and localization.
func (a *app) init() error {
	log := logger.NewLogger(slog.LevelError)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("failed to load .env file", logger.Err(err))
	}

	conf, err := loadConfig(a.confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		return err
	}
	a.conf = conf

	a.log = logger.NewLogger(conf.LogLevel)
	if conf.Log.File != "" {
		writer := logger.FileWriter(conf.Log.File, logger.RotateOptions{
			MaxSizeMB:  conf.Log.MaxSizeMB,
			MaxBackups: conf.Log.MaxBackups,
			MaxAgeDays: conf.Log.MaxAgeDays,
		})
		a.log = logger.NewLogger(conf.LogLevel, writer)
		a.logCloser = writer
	}

	a.t, err = i18n.New(conf.Locale)
	if err != nil {
		a.log.Error("failed to initialize localizer", logger.Err(err))
		return err
	}
	return nil
}

func (a *app) newService() (*service.Service, error) {
	serv, err := service.New(a.conf, a.log, a.t)
	if err != nil {
		a.log.Error("failed to initialize geopicker service", logger.Err(err))
		return nil, err
	}
	return serv, nil
}

// loadConfig reads the config file at confPath, the config file in the default location or
// the defaults, in that order.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "geopicker", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
