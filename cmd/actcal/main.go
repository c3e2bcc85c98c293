package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"actcal/internal/config"
	"actcal/internal/ics"
	appLog "actcal/internal/log"
	"actcal/internal/pipeline"
	"actcal/internal/web"
)

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	input      string
	output     string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"source", conf.Source,
		"output", conf.Output,
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(conf)
	fileOut := ics.FileDeliverer{Path: conf.Output}

	if flags.once {
		rep, err := runner.Run(ctx, fileOut)
		if err != nil {
			appLog.Error("calendar build failed", err)
			os.Exit(1)
		}
		for _, d := range rep.Skipped {
			appLog.Warn("activity skipped", "activity", d.Activity, "reason", d.Reason)
		}
		return
	}

	if err := serve(ctx, conf, runner, fileOut); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("actcal exiting")
}

// serve builds the calendar once, then rebuilds it on the configured cron
// schedule while the HTTP server publishes the latest result.
func serve(ctx context.Context, conf *config.Config, runner *pipeline.Runner, fileOut ics.Deliverer) error {
	srv := web.NewServer(conf)

	refresh := func() { refreshOnce(ctx, runner, srv, fileOut) }

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		return err
	}

	refresh()
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	return srv.Start(ctx)
}

// refreshOnce rebuilds the calendar and publishes it. The server is updated
// whenever a document was built, so a failing file write does not leave the
// JSON view behind the published .ics.
func refreshOnce(ctx context.Context, runner *pipeline.Runner, srv *web.Server, fileOut ics.Deliverer) {
	rep, err := runner.Run(ctx, srv, fileOut)
	if rep.Exported {
		srv.SetOccurrences(rep.Occurrences, rep.Skipped)
	}
	if err != nil {
		appLog.Error("calendar refresh failed", err, "exported", rep.Exported)
	}
}

func applyFlags(conf *config.Config, f flagConfig) {
	if f.input != "" {
		conf.Source = f.input
	}
	if f.output != "" {
		conf.Output = f.output
	}
	if f.listen != "" {
		conf.Listen = f.listen
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./actcal.yaml", "Path to config file")
	flag.StringVar(&cfg.input, "input", "", "Activity feed: JSON file path or http(s) URL (overrides config)")
	flag.StringVar(&cfg.output, "out", "", "Output .ics path (overrides config)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config)")
	flag.BoolVar(&cfg.once, "once", false, "Build the calendar once and exit")

	flag.Parse()

	return cfg
}
