package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/afolab/afo-dashboard/pkg/codec"
	"github.com/afolab/afo-dashboard/pkg/config"
	"github.com/afolab/afo-dashboard/pkg/control"
	"github.com/afolab/afo-dashboard/pkg/csvlog"
	"github.com/afolab/afo-dashboard/pkg/ingest"
	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
	"github.com/afolab/afo-dashboard/pkg/server"
	"github.com/afolab/afo-dashboard/pkg/window"
	"github.com/afolab/afo-dashboard/pkg/wspush"
)

// Version is overridden at build-time.
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML configuration")
	addr := flag.String("addr", "", "override http_addr from the configuration")
	source := flag.String("source", "", "override source: auto, udp, tcp or fake")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	showVer := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "afo-dashboard %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVer {
		fmt.Printf("afo-dashboard %s\n", Version)
		os.Exit(0)
	}

	log.SetLevel(*logLevel)
	log.Logger = log.Logger.With().Str("version", Version).Logger()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Logger.Warn().Str("path", *cfgPath).Msg("config not found, using defaults")
			cfg = config.Default()
		} else {
			log.Logger.Fatal().Err(err).Msg("config load failed")
		}
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *source != "" {
		cfg.Source = *source
		if err := cfg.Validate(); err != nil {
			log.Logger.Fatal().Err(err).Msg("invalid source override")
		}
	}

	layout, err := codec.ParseLayout(cfg.Packet.Format, cfg.Signals)
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("invalid packet layout")
	}
	log.Logger.Info().Int("frame_bytes", layout.Size()).Str("format", cfg.Packet.Format).Msg("packet layout loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := pipeline.NewSampleQueue(cfg.QueueCapacity)
	bcast := pipeline.NewBroadcaster(queue, cfg.MaxClients)
	go bcast.Run(ctx)

	go runIngest(ctx, cfg, layout, queue)

	if cfg.CSVPath != "" {
		logger, err := csvlog.New(cfg.CSVPath, 0, cfg.CSVMaxRows)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("csv logging disabled")
		} else {
			defer logger.Close()
			tap := bcast.Tap(cfg.CSVMaxRows)
			go func() {
				defer tap.Close()
				for {
					s, err := tap.Next(ctx)
					if err != nil {
						return
					}
					logger.Log(s)
				}
			}()
		}
	}

	sender := control.NewSender(cfg.ControlTransport, cfg.ControlAddr(), cfg.ControlMinInterval)
	win := window.New(cfg.WindowSeconds, cfg.SampleRateHz)

	if cfg.WSAddr != "" {
		ws := wspush.NewServer(cfg.WSAddr, bcast, cfg.BatchMax, cfg.FlushInterval)
		go func() {
			if err := ws.Run(ctx); err != nil {
				log.Logger.Error().Err(err).Msg("websocket server failed")
			}
		}()
	}

	srv := server.New(bcast, win, sender, server.Options{
		BatchMax:      cfg.BatchMax,
		FlushInterval: cfg.FlushInterval,
	})
	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
		log.Logger.Fatal().Err(err).Msg("fatal")
	}
	log.Logger.Info().Msg("shutdown complete")
}

// runIngest resolves the configured source mode and runs the matching
// receiver.  Receiver failures are logged, never fatal to the process.
func runIngest(ctx context.Context, cfg *config.Config, layout *codec.Layout, queue *pipeline.SampleQueue) {
	mode := cfg.Source
	if mode == config.SourceAuto {
		if ingest.HostReachable(ctx, cfg.UDP.SendHost) {
			mode = config.SourceUDP
		} else {
			mode = config.SourceFake
		}
	}

	var err error
	switch mode {
	case config.SourceUDP:
		err = ingest.NewUDPReceiver(cfg.UDPListenAddr(), layout, queue).Run(ctx)
	case config.SourceTCP:
		err = ingest.NewTCPReceiver(cfg.TCPAddr(), layout, queue).Run(ctx)
	case config.SourceFake:
		err = ingest.NewSignalGenerator(queue, cfg.SampleRateHz).Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		log.Logger.Error().Err(err).Str("source", mode).Msg("ingest stopped")
	}
}
