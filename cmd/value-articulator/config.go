package main

import (
	"errors"
	"strings"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
)

type Config struct {
	ConfigPath string `yaml:"-"`

	Question   string `yaml:"question"`
	ChoiceType string `yaml:"choice_type"`
	// Context articulates for a situational context instead of a choice type.
	Context    string `yaml:"context"`
	Factors    bool   `yaml:"factors"`
	Story      bool   `yaml:"story"`
	Title      bool   `yaml:"title"`
	ValueID    int    `yaml:"value_id"`
	OutputPath string `yaml:"out"`
	Pretty     bool   `yaml:"pretty"`

	cli.Provider `yaml:",inline"`
	cli.Logging  `yaml:",inline"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Question) == "" {
		return errors.New("missing -question")
	}
	if !c.Factors {
		if c.ChoiceType == "" && c.Context == "" {
			return errors.New("pass -choice-type or -context (or -factors)")
		}
		if c.ChoiceType != "" && c.Context != "" {
			return errors.New("-choice-type and -context are mutually exclusive")
		}
	}
	return c.Provider.Validate()
}

func defaultConfig() Config {
	return Config{
		OutputPath: "-",
		Provider:   cli.DefaultProvider(),
		Logging:    cli.Logging{LogMode: "dev"},
	}
}
