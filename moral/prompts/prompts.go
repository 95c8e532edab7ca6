// Package prompts ships the default system prompts and loads per-file overrides from a directory.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/theimaginaryfoundation/values-tools/moral"
)

//go:embed *.md
var defaults embed.FS

// Files maps each prompt file name to the field it populates.
var Files = map[string]func(*moral.Prompts) *string{
	"deduplicate_values.md":              func(p *moral.Prompts) *string { return &p.DeduplicateValues },
	"deduplicate_contexts.md":            func(p *moral.Prompts) *string { return &p.DeduplicateContexts },
	"best_values_card.md":                func(p *moral.Prompts) *string { return &p.BestValuesCard },
	"find_existing_duplicate.md":         func(p *moral.Prompts) *string { return &p.FindExistingDuplicate },
	"find_existing_duplicate_context.md": func(p *moral.Prompts) *string { return &p.FindExistingDuplicateContext },
	"generate_upgrades.md":               func(p *moral.Prompts) *string { return &p.GenerateUpgrades },
	"generate_value_choice_type.md":      func(p *moral.Prompts) *string { return &p.GenerateValueForChoiceType },
	"generate_value_context.md":          func(p *moral.Prompts) *string { return &p.GenerateValueForContext },
	"generate_factors.md":                func(p *moral.Prompts) *string { return &p.GenerateFactors },
}

// Default returns the embedded prompts.
func Default() moral.Prompts {
	p, err := load(defaults)
	if err != nil {
		// The embedded set is fixed at build time.
		panic(err)
	}
	return p
}

// Load returns the embedded prompts with any file of the same name in dir taking precedence.
// An empty dir returns Default(). Override files that are empty after trimming are an error.
func Load(dir string) (moral.Prompts, error) {
	p := Default()
	if strings.TrimSpace(dir) == "" {
		return p, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return moral.Prompts{}, fmt.Errorf("prompts.Load: %w", err)
	}
	if !info.IsDir() {
		return moral.Prompts{}, fmt.Errorf("prompts.Load: %s is not a directory", dir)
	}
	for name, field := range Files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return moral.Prompts{}, fmt.Errorf("prompts.Load: %w", err)
		}
		s := strings.TrimSpace(string(b))
		if s == "" {
			return moral.Prompts{}, fmt.Errorf("prompts.Load: %s is empty after trimming whitespace", name)
		}
		*field(&p) = s
	}
	return p, nil
}

func load(fsys fs.FS) (moral.Prompts, error) {
	var p moral.Prompts
	for name, field := range Files {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return moral.Prompts{}, err
		}
		*field(&p) = strings.TrimSpace(string(b))
	}
	return p, nil
}
