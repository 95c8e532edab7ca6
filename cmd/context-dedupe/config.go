package main

import (
	"errors"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
	"github.com/theimaginaryfoundation/values-tools/moral"
)

type Config struct {
	ConfigPath string `yaml:"-"`

	InputPath     string `yaml:"in"`
	OutputPath    string `yaml:"out"`
	CanonicalPath string `yaml:"canonical"`
	Pretty        bool   `yaml:"pretty"`

	// UseClustering splits the contexts by embedding density before asking the model.
	UseClustering bool    `yaml:"cluster"`
	Radius        float64 `yaml:"radius"`
	MinPoints     int     `yaml:"min_points"`
	Candidates    int     `yaml:"candidates"`
	Temperature   float64 `yaml:"temperature"`

	cli.Provider `yaml:",inline"`
	cli.Logging  `yaml:",inline"`
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("missing -in")
	}
	if c.Radius <= 0 || c.Radius > 2 {
		return errors.New("radius must be in (0, 2]")
	}
	if c.MinPoints <= 0 {
		return errors.New("min points must be > 0")
	}
	if c.Candidates <= 0 {
		return errors.New("candidates must be > 0")
	}
	return c.Provider.Validate()
}

func (c Config) ReconcileOptions() moral.ReconcileOptions {
	return moral.ReconcileOptions{
		Temperature: c.Temperature,
		Concurrency: c.Concurrency,
		CallTimeout: c.CallTimeout,
		Cluster:     moral.ClusterParams{Radius: c.Radius, MinPoints: c.MinPoints},
	}
}

func defaultConfig() Config {
	return Config{
		OutputPath:    "-",
		UseClustering: true,
		Radius:        moral.DefaultClusterRadius,
		MinPoints:     moral.DefaultClusterMinPoints,
		Candidates:    10,
		Provider:      cli.DefaultProvider(),
		Logging:       cli.Logging{LogMode: "dev"},
	}
}
