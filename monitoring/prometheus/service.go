// Package prometheus exposes the pipeline's metrics over HTTP for scraping.
package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "prometheus")

// Service serves /metrics on the configured address for the lifetime of a
// pipeline run.
type Service struct {
	server *http.Server
}

// NewService builds the metrics endpoint on host:port.
func NewService(host string, port int) *Service {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintln(w, "ok"); err != nil {
			log.WithError(err).Debug("Could not write healthz response")
		}
	})
	return &Service{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background until Stop.
func (s *Service) Start() {
	go func() {
		log.WithField("address", s.server.Addr).Info("Starting metrics endpoint")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics endpoint failed")
		}
	}()
}

// Stop shuts the endpoint down gracefully.
func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
