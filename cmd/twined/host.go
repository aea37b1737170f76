package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/b97tsk/twine"
	"github.com/b97tsk/twine/reactor"
)

// Host runs the configured services on one hub.
//
// Start and Drain must run on the loop. Shutdown runs once the loop has
// stopped.
type Host struct {
	file   *File
	logger *slog.Logger
	loop   *reactor.Loop
	hub    *twine.Hub

	ports  []twine.Port
	active twine.WaitGroup
	err    error
}

func newHost(file *File, logger *slog.Logger, loop *reactor.Loop, hub *twine.Hub) *Host {
	return &Host{file: file, logger: logger, loop: loop, hub: hub}
}

// Start listens on every service address. If one of them fails, the
// loop is stopped.
func (s *Host) Start() {
	for i := range s.file.Services {
		svc := &s.file.Services[i]

		port, err := s.hub.ListenTCP(svc.Address, s.handler(svc))
		if err != nil {
			s.logger.Error("listen failed", "service", svc.Kind, "address", svc.Address, "error", err)
			s.err = fmt.Errorf("listen %s: %w", svc.Address, err)
			s.closePorts()
			s.loop.Stop()
			return
		}

		s.ports = append(s.ports, port)
		s.logger.Info("service started", "service", svc.Kind, "address", port.Addr())
	}

	if s.file.Probe {
		s.probe()
	}
}

// handler wraps the handler of svc with connection accounting and the
// connection limit of svc.
func (s *Host) handler(svc *Service) twine.Handler {
	h := s.hub
	handle := handlers[svc.Kind](h, svc)

	var sema *twine.Semaphore
	if svc.MaxConnections > 0 {
		sema = twine.NewSemaphore(svc.MaxConnections)
	}

	return func(c *twine.Conn) error {
		s.active.Add(1)
		defer s.active.Done()

		if sema != nil {
			if err := sema.Acquire(h, 1); err != nil {
				return err
			}
			defer sema.Release(1)
		}

		s.logger.Debug("connection made", "service", svc.Kind, "remote", c.RemoteAddr())

		err := handle(c)
		switch {
		case errors.Is(err, twine.ErrTimeout):
			s.logger.Debug("connection idle", "service", svc.Kind, "remote", c.RemoteAddr())
			return nil
		case errors.Is(err, twine.ErrHubClosed):
			return nil
		}
		return err
	}
}

// probe connects to the echo service and checks that it echoes.
func (s *Host) probe() {
	address, ok := s.file.echoAddress()
	if !ok {
		s.logger.Warn("probe skipped: no echo service")
		return
	}

	h := s.hub

	h.Run(func() error {
		c, err := h.ConnectTCP(address)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.WriteLine([]byte("Heyo!")); err != nil {
			return err
		}

		line, err := twine.WithTimeout(h, s.file.ProbeTimeout.Duration, c.ReadLine)
		if err != nil {
			return err
		}

		if string(line) == "Heyo!" {
			s.logger.Info("echo probe succeeded", "address", address)
		} else {
			s.logger.Warn("echo probe failed", "address", address, "reply", string(line))
		}
		return nil
	})
}

// Drain stops accepting connections, then gives open ones the grace
// period to finish before stopping the loop.
func (s *Host) Drain() {
	s.logger.Info("shutting down", "connections", s.active.Count())

	s.closePorts()

	h := s.hub

	h.Run(func() error {
		_, err := twine.WithTimeout(h, s.file.GracePeriod.Duration, func() (struct{}, error) {
			return struct{}{}, s.active.Wait(h)
		})
		if err != nil {
			s.logger.Warn("connections left open", "connections", s.active.Count(), "error", err)
		}
		s.loop.Stop()
		return nil
	})
}

func (s *Host) closePorts() {
	for _, p := range s.ports {
		if err := p.Close(); err != nil {
			s.logger.Error("close failed", "address", p.Addr(), "error", err)
		}
	}
	s.ports = nil
}

// Err returns why Start failed, if it did.
func (s *Host) Err() error { return s.err }

// Shutdown closes whatever is left. Fibers still suspended fail with
// twine.ErrHubClosed.
func (s *Host) Shutdown() error {
	s.closePorts()
	s.hub.Close()
	return nil
}
