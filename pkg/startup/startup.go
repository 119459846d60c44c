// Package startup brings service dependencies up in dependency order, retrying with
// Fibonacci backoff, and tears them down in reverse
package startup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is a component with a lifecycle
type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Status is a dependency's lifecycle state
type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
)

// Startup manages an ordered set of dependencies
type Startup struct {
	logger      ectologger.Logger
	maxAttempts int
	backoffUnit time.Duration

	mu       sync.Mutex
	deps     map[string]Dependency
	order    []string // Registration order
	statuses map[string]Status
	started  []string // Start order, for reverse shutdown
}

// NewStartup creates a new startup manager
func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Startup{
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffUnit: time.Second,
		deps:        make(map[string]Dependency),
		statuses:    make(map[string]Status),
	}
}

// AddDependency registers a dependency
func (s *Startup) AddDependency(dep Dependency) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deps[dep.GetName()]; !ok {
		s.order = append(s.order, dep.GetName())
	}
	s.deps[dep.GetName()] = dep
}

// Status returns the state of a named dependency
func (s *Startup) Status(name string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[name]
}

// Start starts every dependency, retrying the whole pass on failure. Dependencies that
// already started are not restarted on a retry.
func (s *Startup) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, name, map[string]bool{}); err != nil {
				s.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}

		wait := time.Duration(a) * s.backoffUnit
		s.logger.Infof("Retrying in %s (attempt %d/%d)", wait, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startDependency(ctx context.Context, name string, visiting map[string]bool) error {
	if s.statuses[name] == StatusStarted {
		return nil
	}
	dep, ok := s.deps[name]
	if !ok {
		return fmt.Errorf("unknown startup dependency '%s'", name)
	}
	if visiting[name] {
		return fmt.Errorf("startup dependency cycle at '%s'", name)
	}
	visiting[name] = true

	for _, upstream := range dep.DependsOn() {
		if err := s.startDependency(ctx, upstream, visiting); err != nil {
			return err
		}
	}

	log := s.logger.WithField("dependency", name)
	log.Infof("Starting dependency '%s'", name)
	if err := dep.Start(ctx); err != nil {
		s.statuses[name] = StatusFailed
		return fmt.Errorf("dependency '%s': %w", name, err)
	}
	s.statuses[name] = StatusStarted
	s.started = append(s.started, name)
	return nil
}

// Stop stops every started dependency in reverse start order. All dependencies are
// stopped even if one fails; the first error is returned.
func (s *Startup) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for i := len(s.started) - 1; i >= 0; i-- {
		name := s.started[i]
		log := s.logger.WithField("dependency", name)
		log.Infof("Stopping dependency '%s'", name)

		if err := s.deps[name].Stop(ctx); err != nil {
			log.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			s.statuses[name] = StatusFailed
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.statuses[name] = StatusStopped
	}
	s.started = nil
	return firstErr
}

// Func adapts plain functions into a Dependency
type Func struct {
	Name      string
	Upstream  []string
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (f *Func) GetName() string     { return f.Name }
func (f *Func) DependsOn() []string { return f.Upstream }

func (f *Func) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f *Func) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}
