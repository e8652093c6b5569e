// smokectl - smoke-test environment checker
//
// smokectl loads a smokecore configuration, builds every client it enables,
// and reports whether the environment is reachable. It is the same wiring the
// BDD suites use, packaged as a standalone preflight so a broken environment
// fails fast instead of failing mid-scenario.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/probeworks/smokecore/internal/infrastructure/config"
	"github.com/probeworks/smokecore/internal/infrastructure/database"
	"github.com/probeworks/smokecore/internal/infrastructure/kafka"
	"github.com/probeworks/smokecore/internal/infrastructure/logging"
	"github.com/probeworks/smokecore/internal/infrastructure/mqtt"
	"github.com/probeworks/smokecore/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("smokectl", flag.ContinueOnError)
	configPath := flags.String("config", envOr("SMOKE_CONFIG", defaultConfigPath), "path to config file")
	check := flags.Bool("check", false, "run broker round-trip checks after connecting")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Use default logger until config is loaded.
	log := logging.Default()
	log.Info("starting smokectl", "version", version, "commit", commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", *configPath)

	// Reinitialise logger with config settings.
	log = logging.New(cfg.Logging, version)

	// Open the config-override store when enabled.
	var store *database.Store
	if cfg.ConfigStore.Enabled {
		store, err = database.Open(ctx, database.Config{
			Path:        cfg.ConfigStore.Path,
			WALMode:     cfg.ConfigStore.WALMode,
			BusyTimeout: cfg.ConfigStore.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening config store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing config store", "error", closeErr)
			}
		}()
		log.Info("config store opened", "path", cfg.ConfigStore.Path)
	}

	// Build and initialise every configured client.
	reg, err := registry.FromConfig(ctx, cfg, store, log)
	if err != nil {
		return fmt.Errorf("building clients: %w", err)
	}
	defer reg.DestroyAll(context.Background())

	names := reg.Names()
	if len(names) == 0 {
		return fmt.Errorf("no clients configured; set kafka.brokers, mqtt.url, storage or logstore sections")
	}
	log.Info("clients connected", "clients", names)

	if *check {
		if err := pubsubRoundTrip(ctx, reg, log); err != nil {
			return fmt.Errorf("pub/sub round-trip check: %w", err)
		}
		if err := brokerRoundTrip(ctx, reg, log); err != nil {
			return fmt.Errorf("log-broker round-trip check: %w", err)
		}
	}

	log.Info("environment ok")
	return nil
}

// pubsubRoundTrip publishes to a probe topic over the pub/sub client and waits
// for the message to come back, proving the broker path end to end.
func pubsubRoundTrip(ctx context.Context, reg *registry.Registry, log *logging.Logger) error {
	svc, ok := reg.Get("mqtt")
	if !ok {
		log.Warn("pub/sub round-trip skipped: no pub/sub client configured")
		return nil
	}
	ps, ok := svc.(*mqtt.Client)
	if !ok {
		return fmt.Errorf("client %q is not a pub/sub client", svc.Name())
	}

	topic := fmt.Sprintf("smokectl/probe/%d", time.Now().UnixMilli())
	payload := fmt.Sprintf("probe-%d", time.Now().UnixNano())

	if err := ps.Subscribe(topic); err != nil {
		return err
	}
	defer func() {
		if err := ps.Unsubscribe(topic); err != nil {
			log.Warn("unsubscribing probe topic failed", "topic", topic, "error", err)
		}
	}()

	type result struct {
		payload string
		ok      bool
		err     error
	}
	got := make(chan result, 1)
	go func() {
		p, ok, err := ps.WaitForMessage(ctx, topic, 5*time.Second)
		got <- result{p, ok, err}
	}()

	if err := ps.PublishString(topic, payload); err != nil {
		return err
	}

	res := <-got
	if res.err != nil {
		return res.err
	}
	if !res.ok {
		return fmt.Errorf("no message on %q within 5s", topic)
	}
	if res.payload != payload {
		return fmt.Errorf("unexpected payload on %q: got %q", topic, res.payload)
	}

	log.Info("pub/sub round-trip passed", "topic", topic)
	return nil
}

// brokerRoundTrip sends one record to the log broker's first tracked topic and
// waits for it to appear on an ephemeral consumer.
func brokerRoundTrip(ctx context.Context, reg *registry.Registry, log *logging.Logger) error {
	svc, ok := reg.Get("kafka")
	if !ok {
		log.Warn("log-broker round-trip skipped: no log-broker client configured")
		return nil
	}
	kc, ok := svc.(*kafka.Client)
	if !ok {
		return fmt.Errorf("client %q is not a log-broker client", svc.Name())
	}

	topics := kc.Topics()
	if len(topics) == 0 {
		return fmt.Errorf("log-broker client tracks no topics")
	}
	topic := topics[0]
	key := fmt.Sprintf("smokectl-probe-%d", time.Now().UnixNano())

	type result struct {
		rec *kafka.Record
		err error
	}
	got := make(chan result, 1)
	go func() {
		rec, err := kc.WaitForMessage(ctx, func(rec kafka.Record) bool {
			return rec.Key == key
		}, 15*time.Second)
		got <- result{rec, err}
	}()

	ack, err := kc.SendMessage(topic, []byte("probe"), key)
	if err != nil {
		return err
	}
	log.Info("probe record acknowledged", "topic", ack.Topic, "partition", ack.Partition, "offset", ack.Offset)

	res := <-got
	if res.err != nil {
		return res.err
	}
	if res.rec == nil {
		return fmt.Errorf("probe record not observed on %q within 15s", topic)
	}

	log.Info("log-broker round-trip passed", "topic", topic)
	return nil
}

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
