package main

import (
	"errors"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
	"github.com/theimaginaryfoundation/values-tools/moral"
)

type Config struct {
	ConfigPath string `yaml:"-"`

	ValuesPath string `yaml:"values"`
	EventsPath string `yaml:"events"`
	OutputPath string `yaml:"out"`
	Pretty     bool   `yaml:"pretty"`

	IncludeAllEdges bool    `yaml:"include_all_edges"`
	IncludeContexts bool    `yaml:"include_contexts"`
	PageRank        string  `yaml:"pagerank"`
	Damping         float64 `yaml:"damping"`
	Iterations      int     `yaml:"iterations"`

	MarkedWiserThreshold int     `yaml:"marked_wiser_threshold"`
	MinWiserLikelihood   float64 `yaml:"min_wiser_likelihood"`
	MaxEntropy           float64 `yaml:"max_entropy"`

	// Demographics is "none", "raw" or "us-political".
	Demographics string `yaml:"demographics"`

	cli.Logging `yaml:",inline"`
}

func (c Config) Validate() error {
	if c.ValuesPath == "" {
		return errors.New("missing -values")
	}
	if c.EventsPath == "" {
		return errors.New("missing -events")
	}
	if c.PageRank != "" {
		if _, err := moral.ParseRankStrategy(c.PageRank); err != nil {
			return err
		}
	}
	if c.Damping <= 0 || c.Damping >= 1 {
		return errors.New("damping must be in (0, 1)")
	}
	if c.Iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if c.MinWiserLikelihood < -1 || c.MinWiserLikelihood > 1 {
		return errors.New("min wiser likelihood must be in [-1, 1]")
	}
	if c.MaxEntropy < 0 {
		return errors.New("max entropy must be >= 0")
	}
	switch c.Demographics {
	case "none", "raw", "us-political":
	default:
		return errors.New("demographics must be none, raw or us-political")
	}
	return nil
}

// Options translates the flags into SummarizeGraph options.
func (c Config) Options() moral.Options {
	opts := moral.Options{
		IncludeAllEdges: c.IncludeAllEdges,
		IncludeContexts: c.IncludeContexts,
		PageRank:        moral.PageRankParams{Damping: c.Damping, Iterations: c.Iterations},
		Retention: moral.RetentionPolicy{
			MinMarkedWiser:     c.MarkedWiserThreshold,
			MinWiserLikelihood: c.MinWiserLikelihood,
			MaxEntropy:         c.MaxEntropy,
		},
	}
	if c.PageRank != "" {
		opts.IncludePageRank = true
		opts.Ranking, _ = moral.ParseRankStrategy(c.PageRank)
	}
	switch c.Demographics {
	case "raw":
		opts.IncludeDemographics = true
	case "us-political":
		opts.IncludeDemographics = true
		opts.DemographicsSummarizer = moral.USPoliticalAffiliationSummarizer
	}
	return opts
}

func defaultConfig() Config {
	r := moral.DefaultRetention()
	p := moral.DefaultPageRankParams()
	return Config{
		OutputPath:           "-",
		Damping:              p.Damping,
		Iterations:           p.Iterations,
		MarkedWiserThreshold: r.MinMarkedWiser,
		MinWiserLikelihood:   r.MinWiserLikelihood,
		MaxEntropy:           r.MaxEntropy,
		Demographics:         "none",
		Logging:              cli.Logging{LogMode: "dev"},
	}
}
