// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/restserver"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// server assembles the daemon's HTTP handler.
type server struct {
	Datastore datastore.Datastore

	// Logger receives unexpected errors.
	Logger logrus.FieldLogger

	// RequestLogger, if non-nil, logs every request.
	RequestLogger logrus.FieldLogger

	// Registry collects the request metrics and is served at
	// /metrics.
	Registry *prometheus.Registry
}

// Handler builds the REST API plus /metrics, wrapped in the standard
// middleware.
func (s *server) Handler() (http.Handler, error) {
	metrics := restserver.NewMetrics()
	if err := metrics.Register(s.Registry); err != nil {
		return nil, err
	}
	r := mux.NewRouter()
	restserver.PopulateRouter(r, s.Datastore, restserver.Options{
		Logger:  s.Logger,
		Metrics: metrics,
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	return restserver.Middleware(r, s.RequestLogger), nil
}
