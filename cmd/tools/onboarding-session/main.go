// cmd/tools/onboarding-session/main.go
//
// onboarding-session replays a YAML session script against a running
// onboarding API through the workflow store, printing the screen after every
// step.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"merchant-onboarding/internal/common/config"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/gateway"
	"merchant-onboarding/internal/onboarding"
)

func main() {
	scriptPath := flag.String("script", "", "Path to the session script (YAML)")
	configPath := flag.String("config", "", "Optional config file; defaults to the configs/ lookup")
	baseURL := flag.String("base-url", "", "Overrides gateway.base_url and the script's base_url")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall session deadline")
	verbose := flag.Bool("v", false, "Log gateway and store activity")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -script is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*scriptPath, *configPath, *baseURL, *timeout, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptPath, configPath, baseURL string, timeout time.Duration, verbose bool) error {
	script, err := loadScript(scriptPath)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gwCfg := cfg.Gateway
	switch {
	case baseURL != "":
		gwCfg.BaseURL = baseURL
	case script.BaseURL != "":
		gwCfg.BaseURL = script.BaseURL
	}

	fencing := cfg.Onboarding.UploadFencing
	if script.Fencing != "" {
		fencing = script.Fencing
	}

	log := logger.NewNoOpLogger()
	if verbose {
		log = logger.NewStructured(cfg.Logging.Level, "console")
	}

	store := onboarding.NewStore(gateway.New(gwCfg, log),
		onboarding.WithLogger(log),
		onboarding.WithFencingPolicy(onboarding.FencingPolicy(fencing)),
		onboarding.WithOperationTimeout(config.GetDuration(gwCfg.Timeout)),
		onboarding.WithCommandBuffer(cfg.Onboarding.CommandBuffer),
	)
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// settle the initial connection probe before the first step
	if err := store.Wait(ctx); err != nil {
		return err
	}

	fmt.Printf("Session against %s (%d steps)\n", gwCfg.BaseURL, len(script.Steps))
	r := &runner{session: store, out: os.Stdout, baseDir: filepath.Dir(scriptPath)}
	return r.run(ctx, script)
}
