// Copyright 2025 Kadir Pekel
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

// Package metrics exposes Prometheus collectors for the HTTP surface,
// the indexing pipeline and search latency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all collectors on a private registry so tests can
// construct independent instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	filesIndexed  *prometheus.CounterVec
	tokensIndexed prometheus.Counter
	tasksFinished *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hound_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hound_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		filesIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hound_files_indexed_total",
			Help: "Files processed by the indexing pipeline, by outcome.",
		}, []string{"outcome"}),
		tokensIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hound_index_tokens_total",
			Help: "Approximate tokens embedded by the indexing pipeline.",
		}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hound_index_tasks_total",
			Help: "Finished indexing tasks by terminal state.",
		}, []string{"state"}),
		searchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hound_search_duration_seconds",
			Help:    "Search request duration in seconds, by search type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// FileIndexed records one pipeline outcome: new, modified, unchanged,
// deleted, skipped or error.
func (m *Metrics) FileIndexed(outcome string) {
	m.filesIndexed.WithLabelValues(outcome).Inc()
}

// TokensIndexed adds to the running token total for embedded chunk text.
func (m *Metrics) TokensIndexed(n int) {
	m.tokensIndexed.Add(float64(n))
}

// TaskFinished records a terminal task state: completed, failed or cancelled.
func (m *Metrics) TaskFinished(state string) {
	m.tasksFinished.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveSearch(searchType string, elapsed time.Duration) {
	m.searchLatency.WithLabelValues(searchType).Observe(elapsed.Seconds())
}
