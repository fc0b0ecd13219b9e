// Package coffee talks to the office coffee machine.
//
// Orders are fire-and-forget: Perform returns immediately and the HTTP call
// happens on its own goroutine, paced by a token bucket so a burst of
// eligible Jobs cannot flood the machine. Every failure is logged here and
// nowhere else.
package coffee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	// URL receives the order as an HTTP POST. Required unless DryRun is set.
	URL string

	// Drink is sent in the order body.
	// Default: "espresso".
	Drink string

	// Timeout bounds a single order, including waiting for a rate-limit token.
	// Default: 10 seconds.
	Timeout time.Duration

	// Interval is the minimum spacing between orders once Burst is spent.
	// Default: 1 minute.
	Interval time.Duration

	// Burst is the number of orders allowed back to back.
	// Default: 3.
	Burst int

	// DryRun logs orders without sending them.
	DryRun bool
}

func DefaultOptions() Options {
	return Options{
		Drink:    "espresso",
		Timeout:  10 * time.Second,
		Interval: time.Minute,
		Burst:    3,
	}
}

type order struct {
	Drink string `json:"drink"`
}

type Machine struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewMachine(opts Options, client *http.Client, logger *zap.Logger) (*Machine, error) {
	defaults := DefaultOptions()
	if opts.Drink == "" {
		opts.Drink = defaults.Drink
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Interval == 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Burst == 0 {
		opts.Burst = defaults.Burst
	}
	if opts.URL == "" && !opts.DryRun {
		return nil, errors.New("coffee machine URL is required")
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Machine{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), opts.Burst),
		logger:  logger.Named("coffee-machine"),
	}, nil
}

// Perform queues one order and returns without waiting for it.
func (m *Machine) Perform(ctx context.Context) {
	// detach from the caller's cancellation, the order has its own timeout
	ctx = context.WithoutCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Order(ctx); err != nil {
			m.logger.Error("Coffee order failed", zap.String("drink", m.opts.Drink), zap.Error(err))
		}
	}()
}

// Order places one order synchronously.
func (m *Machine) Order(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for order slot: %w", err)
	}

	if m.opts.DryRun {
		m.logger.Info("Dry run, not ordering coffee", zap.String("drink", m.opts.Drink))
		return nil
	}

	body, err := json.Marshal(order{Drink: m.opts.Drink})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "kubespresso")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending order: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("coffee machine returned %s", resp.Status)
	}

	m.logger.Info("Coffee is brewing", zap.String("drink", m.opts.Drink), zap.Int("status", resp.StatusCode))
	return nil
}

// Wait blocks until every queued order has finished.
func (m *Machine) Wait() {
	m.wg.Wait()
}
