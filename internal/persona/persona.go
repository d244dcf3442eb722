// Package persona holds the read-only table of persona system-prompt templates.
package persona

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContextPlaceholder marks where the serialized retrieval context is spliced
// into a template.
const ContextPlaceholder = "{{context}}"

var (
	ErrEmptyTable    = errors.New("persona table is empty")
	ErrEmptyTemplate = errors.New("persona template is empty")
	ErrDuplicateKey  = errors.New("duplicate persona key")
)

// Table maps lower-case persona keys to system-prompt templates.
// It is built once and never modified, so it is safe to share between requests.
type Table struct {
	prompts map[string]string
	keys    []string
}

// New builds a table from the given templates. Keys are normalized to lower
// case; two keys that normalize to the same persona are rejected.
func New(templates map[string]string) (*Table, error) {
	if len(templates) == 0 {
		return nil, ErrEmptyTable
	}

	prompts := make(map[string]string, len(templates))
	original := make(map[string]string, len(templates))
	for key, tmpl := range templates {
		k := normalize(key)
		if k == "" {
			return nil, fmt.Errorf("%w: blank persona key", ErrEmptyTemplate)
		}
		if strings.TrimSpace(tmpl) == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyTemplate, key)
		}
		if prev, ok := original[k]; ok {
			a, b := prev, key
			if b < a {
				a, b = b, a
			}
			return nil, fmt.Errorf("%w: %q and %q both name %q", ErrDuplicateKey, a, b, k)
		}
		original[k] = key
		prompts[k] = tmpl
	}

	keys := make([]string, 0, len(prompts))
	for k := range prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Table{prompts: prompts, keys: keys}, nil
}

// Default returns the built-in persona table.
func Default() *Table {
	t, err := New(builtinPrompts)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a YAML mapping of persona key to template from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	var templates map[string]string
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse personas file %s: %w", path, err)
	}
	return New(templates)
}

// Lookup returns the template for key, matching case-insensitively.
func (t *Table) Lookup(key string) (string, bool) {
	tmpl, ok := t.prompts[normalize(key)]
	return tmpl, ok
}

// Keys returns the persona keys in sorted order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

func (t *Table) Len() int {
	return len(t.prompts)
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
