// Command twined runs classic line and stream services (echo, discard,
// qotd, chargen, daytime, chat) as fibers on a single event loop.
//
// Usage:
//
//	twined [-config file] [-log-level level]
//
// Without -config, every service listens on a loopback port starting at
// 1025. SIGINT or SIGTERM starts a graceful shutdown.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/b97tsk/twine"
	"github.com/b97tsk/twine/reactor"
	"github.com/samber/do"
)

type options struct {
	configPath string
	logLevel   string
}

func main() {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "path of the TOML service file")
	flag.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "twined:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	injector := newInjector(opts)

	host, err := do.Invoke[*Host](injector)
	if err != nil {
		return err
	}

	loop := do.MustInvoke[*reactor.Loop](injector)
	logger := do.MustInvoke[*slog.Logger](injector)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case <-sigs:
			loop.Post(host.Drain)
		case <-loop.Done():
		}
	}()

	loop.Post(host.Start)

	if err := loop.Run(); err != nil {
		logger.Error("loop failed", "error", err)
	}

	return errors.Join(host.Err(), injector.Shutdown())
}

func newInjector(opts options) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, opts)
	do.Provide(injector, provideFile)
	do.Provide(injector, provideLogger)
	do.Provide(injector, provideLoop)
	do.Provide(injector, provideHub)
	do.Provide(injector, provideHost)

	return injector
}

func provideFile(i *do.Injector) (*File, error) {
	opts, err := do.Invoke[options](i)
	if err != nil {
		return nil, err
	}
	return loadFile(opts.configPath)
}

func provideLogger(i *do.Injector) (*slog.Logger, error) {
	opts, err := do.Invoke[options](i)
	if err != nil {
		return nil, err
	}
	file, err := do.Invoke[*File](i)
	if err != nil {
		return nil, err
	}

	name := opts.logLevel
	if name == "" {
		name = file.LogLevel
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func provideLoop(i *do.Injector) (*reactor.Loop, error) {
	logger, err := do.Invoke[*slog.Logger](i)
	if err != nil {
		return nil, err
	}
	return reactor.New(reactor.WithLogger(logger)), nil
}

func provideHub(i *do.Injector) (*twine.Hub, error) {
	file, err := do.Invoke[*File](i)
	if err != nil {
		return nil, err
	}
	logger, err := do.Invoke[*slog.Logger](i)
	if err != nil {
		return nil, err
	}
	loop, err := do.Invoke[*reactor.Loop](i)
	if err != nil {
		return nil, err
	}
	return twine.NewHub(loop, twine.WithConfig(file.Hub), twine.WithLogger(logger)), nil
}

func provideHost(i *do.Injector) (*Host, error) {
	file, err := do.Invoke[*File](i)
	if err != nil {
		return nil, err
	}
	logger, err := do.Invoke[*slog.Logger](i)
	if err != nil {
		return nil, err
	}
	loop, err := do.Invoke[*reactor.Loop](i)
	if err != nil {
		return nil, err
	}
	hub, err := do.Invoke[*twine.Hub](i)
	if err != nil {
		return nil, err
	}
	return newHost(file, logger, loop, hub), nil
}
