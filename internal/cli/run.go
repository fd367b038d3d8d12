// Package cli implements the flowbuild command logic: configuration
// assembly, client construction and terminal rendering of build
// progress.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/langflow-ai/flowbuild"
	"github.com/langflow-ai/flowbuild/internal/config"
	"github.com/langflow-ai/flowbuild/internal/logging"
	"github.com/langflow-ai/flowbuild/pkg/adapters/redis"
	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	ConfigPath string
	EngineURL  string
	APIKey     string
	FlowID     string
	InputValue string
	SessionID  string
	Delivery   string
	Eventless  bool
	LogBuilds  bool
	StartID    string
	StopID     string
	Debug      bool
	NoColor    bool
}

// Run executes one flow build and renders its progress until the
// attempt finishes or the process is interrupted.
func Run(opts RunOptions) error {
	client, logger, err := buildClient(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := newRenderer(opts.NoColor)
	spec := flowbuild.BuildSpec{
		FlowID:        opts.FlowID,
		SessionID:     opts.SessionID,
		InputValue:    opts.InputValue,
		StartVertexID: opts.StartID,
		StopVertexID:  opts.StopID,
		LogBuilds:     opts.LogBuilds,
		Hooks:         renderer.hooks(),
	}

	var attempt *flowbuild.Attempt
	if opts.Eventless {
		attempt, err = client.BuildEventless(ctx, spec)
	} else {
		attempt, err = client.Build(ctx, spec)
	}
	if err != nil {
		return fmt.Errorf("starting build: %w", err)
	}

	// An interrupt cancels the attempt; the attempt itself then winds
	// down and Wait returns.
	go func() {
		<-ctx.Done()
		attempt.Cancel()
	}()

	summary, err := attempt.Wait(context.Background())
	if err != nil {
		if attempt.Cancelled() {
			renderer.printStopped()
			return nil
		}
		logger.Error("build failed", "flow_id", opts.FlowID, "err", err)
		return err
	}
	renderer.printSummary(summary, attempt.Messages())
	return nil
}

// buildClient assembles the effective configuration and the engine
// client. Flags override environment, which overrides the file.
func buildClient(opts RunOptions) (*flowbuild.Client, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.EngineURL != "" {
		cfg.EngineURL = opts.EngineURL
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.Delivery != "" {
		cfg.Delivery = opts.Delivery
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(level)

	clientOpts := []flowbuild.Option{
		flowbuild.WithLogger(logger),
		flowbuild.WithMinVertexDuration(cfg.MinVertexDuration),
		flowbuild.WithPollInterval(cfg.PollInterval),
	}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, flowbuild.WithAPIKey(cfg.APIKey))
	}
	if cfg.Delivery != "" {
		delivery, err := domain.ParseDeliveryType(cfg.Delivery)
		if err != nil {
			return nil, nil, err
		}
		clientOpts = append(clientOpts, flowbuild.WithDelivery(delivery))
	}
	if cfg.RedisAddr != "" {
		store := redis.New(cfg.RedisAddr, "", 0)
		clientOpts = append(clientOpts, flowbuild.WithResultStore(store))
	}

	client, err := flowbuild.New(cfg.EngineURL, clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}
