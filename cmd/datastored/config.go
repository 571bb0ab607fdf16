// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"io/ioutil"

	"github.com/diffeo/go-datastore/backend"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

// Config holds the daemon settings.  They come from, in increasing
// priority, the defaults, the YAML file named by --config, and the
// command line.
type Config struct {
	// HTTP is the [ip]:port to serve the REST API on.
	HTTP string `mapstructure:"http"`

	// Backend is the impl[:address] of the storage backend.
	Backend string `mapstructure:"backend"`

	// LogRequests logs every request at debug level.
	LogRequests bool `mapstructure:"log_requests"`

	// LogLevel is the minimum logrus level to log.
	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig returns the settings used when nothing else is
// given.
func DefaultConfig() Config {
	return Config{
		HTTP:     ":5990",
		Backend:  "memory",
		LogLevel: logrus.InfoLevel.String(),
	}
}

func loadConfigYaml(filename string) (map[string]interface{}, error) {
	var result map[string]interface{}
	var err error
	var bytes []byte
	bytes, err = ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, &result)
	}
	return result, err
}

// Decode overlays a YAML configuration map onto the config.  Unknown
// keys are an error.
func (cfg *Config) Decode(raw map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// configure builds the configuration for a command-line invocation.
func configure(c *cli.Context) (Config, error) {
	cfg := DefaultConfig()
	if filename := c.String("config"); filename != "" {
		raw, err := loadConfigYaml(filename)
		if err != nil {
			return cfg, err
		}
		if err = cfg.Decode(raw); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("http") {
		cfg.HTTP = c.String("http")
	}
	if c.IsSet("backend") {
		if b, ok := c.Generic("backend").(*backend.Backend); ok {
			cfg.Backend = b.String()
		}
	}
	if c.IsSet("log-requests") {
		cfg.LogRequests = c.Bool("log-requests")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, nil
}
