package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/feedsource/cmd/flags"
	"github.com/ruteri/feedsource/config"
	"github.com/ruteri/feedsource/httpserver"
	"github.com/ruteri/feedsource/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "feedsource",
		Usage: "Resolve feed sources to their storage backends",
		Flags: append([]cli.Flag{flags.ConfigFlag}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:   "resolve",
				Usage:  "Resolve a source and print its paths and credential source",
				Flags:  []cli.Flag{flags.SourceFlag},
				Action: resolveAction,
			},
			{
				Name:   "sources",
				Usage:  "List configured source names",
				Action: sourcesAction,
			},
			{
				Name:  "serve",
				Usage: "Serve the source inspection API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen-addr",
						Value: "127.0.0.1:8080",
						Usage: "address to listen on for API",
					},
					&cli.BoolFlag{
						Name:  "pprof",
						Value: false,
						Usage: "enable pprof debug endpoint",
					},
					&cli.Int64Flag{
						Name:  "drain-seconds",
						Value: 45,
						Usage: "seconds to wait in drain HTTP request",
					},
				},
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func resolveAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	doc, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}

	src, err := config.FindSource(doc, cCtx.String(flags.SourceFlag.Name), logger)
	if err != nil {
		return err
	}

	factory := storage.NewStorageBackendFactory(logger, nil)
	backend, err := factory.BackendFor(cCtx.Context, src)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(storage.Describe(src, backend), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, string(out))
	return nil
}

func sourcesAction(cCtx *cli.Context) error {
	doc, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}
	for _, name := range config.SourceNames(doc) {
		fmt.Fprintln(cCtx.App.Writer, name)
	}
	return nil
}

func serveAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	doc, err := flags.LoadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}
	logger.Info("Loaded feed configuration",
		"path", doc.Path,
		"sources", len(doc.Sources))

	handler := httpserver.NewHandler(doc, storage.NewStorageBackendFactory(logger, nil), logger)
	srv := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String("listen-addr"),
		EnablePprof:              cCtx.Bool("pprof"),
		Log:                      logger,
		DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             60 * time.Second,
	}, handler)

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	srv.RunInBackground()
	<-exit

	srv.Shutdown()
	return nil
}
