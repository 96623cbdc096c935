// Command gptbot chats with a completion model from the terminal, or relays
// a Slack workspace to it over Socket Mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaharia-lab/gptbot"
	"github.com/shaharia-lab/gptbot/relay"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	slackMode := flag.Bool("slack", false, "relay Slack messages instead of reading from stdin")
	flag.Parse()

	if err := run(*configPath, *slackMode); err != nil {
		fmt.Fprintf(os.Stderr, "gptbot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, slackMode bool) error {
	v, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(v)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if f := v.ConfigFileUsed(); f != "" {
		logger.WithFields(map[string]interface{}{"source": f}).Info("configuration loaded")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	persona, err := loadPersona(v)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx, v, logger)
	if err != nil {
		return fmt.Errorf("failed to create completion provider: %w", err)
	}

	metrics, err := newMetrics()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var recorder gptbot.UsageRecorder
	sqlRecorder, err := newUsageRecorder(v, logger)
	if err != nil {
		return fmt.Errorf("failed to open usage ledger: %w", err)
	}
	if sqlRecorder != nil {
		defer sqlRecorder.Close()
		recorder = sqlRecorder
	}

	opts := conversationOptions(v, logger, metrics, recorder)
	registry := gptbot.NewSessionRegistry(func() *gptbot.Conversation {
		return gptbot.NewConversation(provider, persona, opts...)
	})
	hub := relay.NewHub(registry, "", logger)

	g, ctx := errgroup.WithContext(ctx)

	if addr := v.GetString("metrics.addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Infof("serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		if slackMode {
			slackRelay := relay.NewSlackRelay(hub, v.GetString("slack.bot_token"), v.GetString("slack.app_token"), logger)
			return slackRelay.Run(ctx)
		}
		return runREPL(ctx, hub, os.Stdin, os.Stdout)
	})

	return g.Wait()
}
