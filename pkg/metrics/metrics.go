// Copyright 2025 vArmor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports the counters of a session in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	MeterName   = "seccompsynth"
	MetricsPath = "/metrics"
)

// MetricsModule owns the meter provider. When it is disabled every
// instrument is a no-op.
type MetricsModule struct {
	Enabled  bool
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	server   *http.Server
	log      logr.Logger
}

func NewMetricsModule(log logr.Logger, enabled bool) (*MetricsModule, error) {
	m := MetricsModule{
		Enabled: enabled,
		log:     log,
	}

	if !enabled {
		m.meter = noop.NewMeterProvider().Meter(MeterName)
		return &m, nil
	}

	m.registry = prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(m.registry), otelprom.WithoutTargetInfo())
	if err != nil {
		return nil, err
	}
	m.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	m.meter = m.provider.Meter(MeterName)

	return &m, nil
}

// RegisterInt64Counter creates a counter. The exporter appends the _total
// suffix to its name.
func (m *MetricsModule) RegisterInt64Counter(name string, description string) metric.Int64Counter {
	counter, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		m.log.Error(err, "Int64Counter() failed", "name", name)
		counter, _ = noop.NewMeterProvider().Meter(MeterName).Int64Counter(name)
	}
	return counter
}

// Handler serves the registry.
func (m *MetricsModule) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if m.Enabled {
		router.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
	}
	return router
}

// Serve exposes the metrics on addr in the background.
func (m *MetricsModule) Serve(addr string) {
	if !m.Enabled || addr == "" {
		return
	}

	m.server = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.log.Info("serving metrics", "address", addr, "path", MetricsPath)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error(err, "ListenAndServe() failed")
		}
	}()
}

// Shutdown stops the server and flushes the provider.
func (m *MetricsModule) Shutdown(ctx context.Context) {
	if m.server != nil {
		m.server.Shutdown(ctx)
	}
	if m.provider != nil {
		m.provider.Shutdown(ctx)
	}
}
