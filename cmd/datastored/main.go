// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package datastored serves a datastore over the REST API in the
// restserver package.  Run it as, for instance,
//
//     datastored --backend sqlite:/var/lib/datastore.db --http :5990
//
// Prometheus metrics are served at /metrics on the same address.
package main

import (
	"net/http"

	"github.com/diffeo/go-datastore/backend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "datastored"
	app.Usage = "serve a datastore over HTTP"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "http",
			Value: DefaultConfig().HTTP,
			Usage: "[ip]:port for HTTP REST interface",
		},
		cli.GenericFlag{
			Name:  "backend",
			Value: &backend.Backend{Implementation: "memory"},
			Usage: "impl[:address] of the storage backend",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "global configuration YAML file",
		},
		cli.BoolFlag{
			Name:  "log-requests",
			Usage: "log all requests",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: DefaultConfig().LogLevel,
			Usage: "minimum level of log messages",
		},
	}
	app.Action = run
	return app
}

func main() {
	newApp().RunAndExitOnError()
}

func run(c *cli.Context) error {
	cfg, err := configure(c)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Could not load configuration")
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Invalid log level")
		return err
	}
	logrus.SetLevel(level)

	var be backend.Backend
	err = be.Set(cfg.Backend)
	if err == nil {
		s := &server{Logger: logrus.StandardLogger()}
		s.Datastore, err = be.Datastore()
		if err == nil {
			if cfg.LogRequests {
				s.RequestLogger = requestLogger(logrus.StandardLogger())
			}
			s.Registry = prometheus.NewRegistry()
			err = s.Registry.Register(prometheus.NewGoCollector())
		}
		if err == nil {
			var h http.Handler
			h, err = s.Handler()
			if err == nil {
				logrus.WithFields(logrus.Fields{
					"http":    cfg.HTTP,
					"backend": be.String(),
				}).Info("Serving datastore")
				err = http.ListenAndServe(cfg.HTTP, h)
			}
		}
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err":     err,
			"backend": cfg.Backend,
		}).Fatal("Could not run datastore server")
	}
	return err
}

// requestLogger creates a logger that writes to the same place as
// stdlog, but logs at debug level regardless of its level.
func requestLogger(stdlog *logrus.Logger) *logrus.Logger {
	return &logrus.Logger{
		Out:       stdlog.Out,
		Formatter: stdlog.Formatter,
		Hooks:     stdlog.Hooks,
		Level:     logrus.DebugLevel,
	}
}
