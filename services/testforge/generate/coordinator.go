// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/testforge/services/llm"
)

var tracer = otel.Tracer("testforge.generate")

const (
	DefaultWorkers        = 4
	DefaultRequestTimeout = 5 * time.Minute
)

// Coordinator dispatches generation requests to the oracle.
//
// # Thread Safety
//
// Safe for concurrent use. The run cache is shared across all calls
// on one Coordinator; build a fresh Coordinator per workflow run so
// cached artifacts never leak between runs.
type Coordinator struct {
	oracle         llm.LLMClient
	workers        int64
	requestTimeout time.Duration
	logger         *slog.Logger

	mu    sync.Mutex
	cache map[string]Result
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithWorkers bounds concurrent oracle calls.
func WithWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = int64(n)
		}
	}
}

// WithRequestTimeout bounds each oracle call.
func WithRequestTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// NewCoordinator creates a coordinator over the given oracle.
func NewCoordinator(oracle llm.LLMClient, opts ...CoordinatorOption) (*Coordinator, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: oracle must not be nil", ErrInvalidInput)
	}
	c := &Coordinator{
		oracle:         oracle,
		workers:        DefaultWorkers,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default().With("component", "generate.Coordinator"),
		cache:          make(map[string]Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateAll serves every request and returns results in request
// order.
//
// # Description
//
// Requests run in parallel up to the worker bound. A failed request
// records its error in the corresponding result and never affects
// its siblings. Deletions short-circuit without touching the oracle.
// Cancellation of ctx stops dispatching new work; requests already
// in flight finish or time out on their own per-request deadline.
func (c *Coordinator) GenerateAll(ctx context.Context, reqs []*Request) []Result {
	ctx, span := tracer.Start(ctx, "Coordinator.GenerateAll")
	defer span.End()
	span.SetAttributes(attribute.Int("generate.requests", len(reqs)))

	results := make([]Result, len(reqs))
	sem := semaphore.NewWeighted(c.workers)
	var wg sync.WaitGroup

	for i, req := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{
				TestPath: req.Record.TestPath,
				Action:   req.Action(),
				Err:      fmt.Errorf("dispatch canceled: %w", err),
			}
			continue
		}
		wg.Add(1)
		go func(i int, req *Request) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = c.generateOne(ctx, req)
		}(i, req)
	}
	wg.Wait()

	failed := 0
	for i := range results {
		if results[i].Failed() {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("generate.failed", failed))
	c.logger.Info("generation pass complete",
		"requests", len(reqs), "failed", failed)
	return results
}

func (c *Coordinator) generateOne(ctx context.Context, req *Request) Result {
	action := req.Action()
	result := Result{TestPath: req.Record.TestPath, Action: action}

	if req.Record.TestPath == "" {
		result.Err = fmt.Errorf("%w: request has no test path", ErrInvalidInput)
		return result
	}

	// Deletions carry no content and never consult the oracle.
	if action == ActionDelete {
		return result
	}

	key := req.Record.TestPath + "\x00" + req.ContextHash()
	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		cached.CacheHit = true
		cached.Duration = 0
		c.logger.Debug("run cache hit", "test_path", req.Record.TestPath)
		return cached
	}
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "Coordinator.generateOne")
	defer span.End()
	span.SetAttributes(
		attribute.String("generate.test_path", req.Record.TestPath),
		attribute.String("generate.action", string(action)),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	prompt := systemPreamble + "\n\n" + buildPrompt(req)
	start := time.Now()
	reply, err := c.oracle.Generate(callCtx, prompt, llm.DeterministicParams())
	result.Duration = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("oracle call failed",
			"source", req.Record.Path, "error", err)
		result.Err = fmt.Errorf("oracle call for %s: %w", req.Record.Path, err)
		return result
	}

	content, err := ExtractArtifact(reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("unusable oracle reply",
			"source", req.Record.Path, "error", err)
		result.Err = fmt.Errorf("extracting artifact for %s: %w", req.Record.Path, err)
		return result
	}
	result.Content = content

	c.mu.Lock()
	c.cache[key] = result
	c.mu.Unlock()

	c.logger.Debug("artifact generated",
		"test_path", req.Record.TestPath,
		"action", action,
		"bytes", len(content),
		"duration", result.Duration)
	return result
}
