package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

func newSupervisor(cfg SupervisorConfig) *suture.Supervisor {
	return suture.New("lunch-indexer", suture.Spec{
		EventHook:        logEventHook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

// logEventHook writes supervisor events to logrus
func logEventHook(e suture.Event) {
	entry := log.WithFields(log.Fields(e.Map())).WithField("event", e.Type())
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeBackoff:
		entry.Error(e.String())
	case suture.EventTypeResume:
		entry.Info(e.String())
	default:
		entry.Warn(e.String())
	}
}

// FiberService runs a fiber app under the supervisor
type FiberService struct {
	app             *fiber.App
	listen          string
	shutdownTimeout time.Duration
}

func NewFiberService(app *fiber.App, listen string, shutdownTimeout time.Duration) *FiberService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &FiberService{app: app, listen: listen, shutdownTimeout: shutdownTimeout}
}

func (s *FiberService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.listen)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return errors.New("http server stopped unexpectedly")
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(s.shutdownTimeout); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *FiberService) String() string {
	return "http/" + s.listen
}
