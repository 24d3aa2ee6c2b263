// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/picker"
	"github.com/wneessen/geopicker/internal/server"
)

func newRunCmd(a *app) *cobra.Command {
	var listen string
	var noAPI bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "track the location and print the resolved address periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serv, err := a.newService()
			if err != nil {
				return err
			}
			if listen == "" {
				listen = a.conf.Server.Listen
			}

			group, ctx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				return serv.Run(ctx)
			})
			if !noAPI {
				p, err := serv.NewPicker(ctx)
				if err != nil {
					return err
				}
				srv := server.New(serv.ViewModel(), p, a.log)
				group.Go(func() error {
					return srv.ListenAndServe(ctx, listen)
				})
			}

			a.log.Info("starting geopicker service", slog.String("version", version),
				slog.String("commit", commit), slog.String("date", date))
			if err = group.Wait(); err != nil {
				a.log.Error("geopicker service failed", logger.Err(err))
				return err
			}
			a.log.Info("shutting down geopicker service")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address of the API server (default from config)")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "do not start the API server")
	return cmd
}

func newPickCmd(a *app) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "pick a location interactively and resolve its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if at != "" {
				a.conf.Picker.Initial = at
			}
			serv, err := a.newService()
			if err != nil {
				return err
			}
			if _, _, err = serv.Locate(cmd.Context()); err != nil {
				return err
			}
			p, err := serv.NewPicker(cmd.Context())
			if err != nil {
				return err
			}

			prompt := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			session := picker.NewSession(p, os.Stdin, os.Stderr, a.t, prompt)
			if _, err = session.Run(cmd.Context()); err != nil {
				if errors.Is(err, picker.ErrAborted) {
					return nil
				}
				return err
			}

			out, err := serv.Await()
			if err != nil {
				a.log.Error("failed to resolve picked location", logger.Err(err))
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "initial picker location as <lat>,<lng>")
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <lat>,<lng>",
		Short: "resolve a single location to its address",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			serv, err := a.newService()
			if err != nil {
				return err
			}
			out, err := serv.Resolve(args[0])
			if err != nil {
				a.log.Error("failed to resolve location", logger.Err(err))
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
}
