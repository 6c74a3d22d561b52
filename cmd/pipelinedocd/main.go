package main

// pipelinedocd serves the collaborative pipeline-document editing
// backend described by the project's OT engine: one WebSocket listener,
// one goroutine per open document, and a bounded worker pool for the
// query collaborator.
//
// Design mirrors the teacher's main.go: kingpin flags parsed up front,
// a single *logrus.Logger built and threaded into every long-lived
// component, and an optional CPU profile wrapped around the run.

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/polda-go/pipelinedoc/config"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
	"github.com/polda-go/pipelinedoc/pkg/query"
	"github.com/polda-go/pipelinedoc/pkg/session"
	"github.com/polda-go/pipelinedoc/pkg/transport"
)

const version = "0.1.0"

func main() {
	var (
		configFile = kingpin.Flag(
			"config",
			"Config file for pipelinedocd.",
		).Default("pipelinedocd.yaml").Short('c').String()
		docRoot = kingpin.Flag(
			"doc.root",
			"Directory CSV sources are read from (overrides config).",
		).String()
		debug = kingpin.Flag(
			"debug",
			"Enable debug-level logging.",
		).Bool()
		cpuProfile = kingpin.Flag(
			"cpuprofile",
			"Write a CPU profile for the lifetime of the process.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version).Author("pipelinedoc maintainers")
	kingpin.CommandLine.Help = "Serves the pipeline-document collaborative OT editing backend.\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()

	cfg, err := config.LoadConfigFile(*configFile)
	if err != nil {
		logger.Errorf("error loading config file: %v", err)
		os.Exit(1)
	}
	if *docRoot != "" {
		cfg.DocRoot = *docRoot
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	logger.SetLevel(parseLevel(cfg.LogLevel))

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	logger.Infof("pipelinedocd %s starting, listening on %s", version, cfg.Addr())

	engine := query.NewMemoryEngine(cfg.DocRoot)
	dispatcher := query.NewDispatcher(engine, cfg.QueryWorkers)
	defer dispatcher.Stop()

	load := session.LoadOrCreate(func(data []byte) (*pipeline.Doc, error) {
		// No persisted document format is defined (spec Non-goals);
		// any existing file at the requested document path is treated
		// as opaque and a fresh empty Doc is handed back instead of parsed.
		return pipeline.NewDoc(), nil
	})
	broker := session.NewBroker(load, dispatcher, logger)
	defer broker.Close()

	srv := transport.NewServer(broker, cfg.DocRoot, logger)

	mux := http.NewServeMux()
	mux.Handle("/", srv)

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		httpServer.Close()
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("server error: %v", err)
		os.Exit(1)
	}
}

func parseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
