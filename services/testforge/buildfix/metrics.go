// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package buildfix

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for build-fix operations.
var (
	tracer = otel.Tracer("testforge.buildfix")
	meter  = otel.Meter("testforge.buildfix")
)

var (
	buildAttempts metric.Int64Counter
	fixRequests   metric.Int64Counter
	runOutcomes   metric.Int64Counter
	buildLatency  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildAttempts, err = meter.Int64Counter(
			"buildfix_build_attempts_total",
			metric.WithDescription("Total build invocations across fix loops"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixRequests, err = meter.Int64Counter(
			"buildfix_fix_requests_total",
			metric.WithDescription("Total per-file fix requests sent to the oracle"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runOutcomes, err = meter.Int64Counter(
			"buildfix_run_outcomes_total",
			metric.WithDescription("Terminal states reached by build-fix runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildLatency, err = meter.Float64Histogram(
			"buildfix_build_duration_seconds",
			metric.WithDescription("Duration of individual build invocations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordOutcome(ctx context.Context, state State) {
	if runOutcomes != nil {
		runOutcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("state", string(state)),
		))
	}
}
