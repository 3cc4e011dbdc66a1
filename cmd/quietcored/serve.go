// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quiet-mesh/quietcore/config"
	"github.com/quiet-mesh/quietcore/core"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/internal/metrics"
	"github.com/quiet-mesh/quietcore/transport/udp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the daemon: receive loop, scheduler ticks, metrics listener",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewDefaultLogger()
	log.SetLevel(parseLevel(cfg.Logging.Level))
	logger.SetDefaultLogger(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := core.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	tr, err := udp.Listen(cfg.Transport.ListenAddr, clock.Real{})
	if err != nil {
		return err
	}
	defer tr.Close()

	cc := core.New(st, tr, clock.Real{}, cfg)

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.ListenAddr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
		log.Info("metrics listening", logger.String("addr", cfg.Metrics.ListenAddr))
	}

	log.Info("quietcored starting",
		logger.String("listen_addr", cfg.Transport.ListenAddr),
		logger.String("store_driver", cfg.Store.Driver))

	go cc.ReceiveLoop(ctx, func(err error) {
		log.Warn("datagram handling failed", logger.Error(err))
	})

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("quietcored shutting down")
			return nil
		case <-ticker.C:
			if n, err := cc.Tick(ctx); err != nil {
				log.Warn("scheduler tick failed", logger.Error(err))
			} else if n > 0 {
				log.Debug("scheduler tick enqueued envelopes", logger.Int("count", n))
			}
		}
	}
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(configPath)
}
