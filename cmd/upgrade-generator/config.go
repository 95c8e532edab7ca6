package main

import (
	"errors"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
	"github.com/theimaginaryfoundation/values-tools/moral"
)

type Config struct {
	ConfigPath string `yaml:"-"`

	ValuesPath string `yaml:"values"`
	OutputPath string `yaml:"out"`
	Context    string `yaml:"context"`
	// TargetID, when >= 0, restricts transitions to ones ending at that value.
	TargetID    int     `yaml:"target"`
	Temperature float64 `yaml:"temperature"`
	Pretty      bool    `yaml:"pretty"`

	cli.Provider `yaml:",inline"`
	cli.Logging  `yaml:",inline"`
}

func (c Config) Validate() error {
	if c.ValuesPath == "" {
		return errors.New("missing -values")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be in [0, 2]")
	}
	return c.Provider.Validate()
}

func defaultConfig() Config {
	return Config{
		OutputPath:  "-",
		TargetID:    -1,
		Temperature: moral.DefaultUpgradeTemperature,
		Provider:    cli.DefaultProvider(),
		Logging:     cli.Logging{LogMode: "dev"},
	}
}
