// Package actions turns an editor action and its input into the prompt sent to a provider.
package actions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var builtinPrompts []byte

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNoSelection   = errors.New("no code selected")
	ErrNoQuestion    = errors.New("no question given")
)

const (
	Improve       = "improve"
	Explain       = "explain"
	FixTypos      = "fix-typos"
	WriteComments = "write-comments"
	Review        = "review"
	AutoComment   = "auto-comment"
	CreateCode    = "create-code"
	Ask           = "ask"
)

const (
	ModeSelection = "selection"
	ModeCursor    = "cursor"
)

// aliases maps the editor command ids onto action names.
var aliases = map[string]string{
	"fixtypos":        FixTypos,
	"writecomments":   WriteComments,
	"automatedreview": Review,
	"autocomment":     AutoComment,
	"createcode":      CreateCode,
	"askquestion":     Ask,
	"question":        Ask,
}

// Definition is one catalog entry as written in YAML.
type Definition struct {
	Name             string `yaml:"-" json:"name"`
	Title            string `yaml:"title" json:"title"`
	Description      string `yaml:"description" json:"description"`
	Mode             string `yaml:"mode" json:"mode"`
	Replace          bool   `yaml:"replace" json:"replace"`
	RequiresQuestion bool   `yaml:"requires_question" json:"requires_question"`
	Template         string `yaml:"template" json:"-"`
}

// Input is what the editor host captured for an action.
type Input struct {
	Code     string
	Language string
	Question string
	// Context is the text around the cursor for cursor-mode actions.
	Context string
}

type entry struct {
	def Definition
	tpl *template.Template
}

// Catalog holds parsed action templates.
type Catalog struct {
	entries map[string]entry
}

// Load returns the built-in catalog overlaid with the YAML file at path, if path is not empty.
func Load(path string) (*Catalog, error) {
	defs, err := parse(builtinPrompts)
	if err != nil {
		return nil, fmt.Errorf("parse builtin prompts: %w", err)
	}
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts file: %w", err)
		}
		overrides, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
		}
		for name, o := range overrides {
			defs[name] = merge(defs[name], o)
		}
	}
	return build(defs)
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

func parse(raw []byte) (map[string]Definition, error) {
	defs := map[string]Definition{}
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// merge overlays non-empty fields of o onto base. Boolean flags are taken from o
// only when o defines a template, i.e. replaces the entry wholesale.
func merge(base, o Definition) Definition {
	if o.Template != "" {
		if o.Mode == "" {
			o.Mode = base.Mode
		}
		if o.Title == "" {
			o.Title = base.Title
		}
		if o.Description == "" {
			o.Description = base.Description
		}
		return o
	}
	if o.Title != "" {
		base.Title = o.Title
	}
	if o.Description != "" {
		base.Description = o.Description
	}
	return base
}

func build(defs map[string]Definition) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]entry, len(defs))}
	for name, def := range defs {
		def.Name = name
		if def.Mode == "" {
			def.Mode = ModeSelection
		}
		if def.Mode != ModeSelection && def.Mode != ModeCursor {
			return nil, fmt.Errorf("action %q: unsupported mode %q", name, def.Mode)
		}
		if strings.TrimSpace(def.Template) == "" {
			return nil, fmt.Errorf("action %q: template is empty", name)
		}
		tpl, err := template.New(name).Option("missingkey=zero").Parse(def.Template)
		if err != nil {
			return nil, fmt.Errorf("action %q: parse template: %w", name, err)
		}
		c.entries[name] = entry{def: def, tpl: tpl}
	}
	return c, nil
}

// Normalize maps user input such as "fixTypos" onto a catalog name.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	if a, ok := aliases[strings.ReplaceAll(n, "-", "")]; ok {
		return a
	}
	return n
}

// Lookup returns the definition of an action.
func (c *Catalog) Lookup(name string) (Definition, error) {
	e, ok := c.entries[Normalize(name)]
	if !ok {
		return Definition{}, fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	return e.def, nil
}

// Definitions lists all actions sorted by mode then name.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode == ModeSelection
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Build renders the prompt for action.
func (c *Catalog) Build(action string, in Input) (string, error) {
	e, ok := c.entries[Normalize(action)]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownAction, action)
	}
	if e.def.Mode == ModeSelection && strings.TrimSpace(in.Code) == "" {
		return "", ErrNoSelection
	}
	if e.def.RequiresQuestion && strings.TrimSpace(in.Question) == "" {
		return "", ErrNoQuestion
	}
	if e.def.Mode == ModeCursor && in.Context == "" {
		in.Context = in.Code
	}

	var b strings.Builder
	if err := e.tpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", e.def.Name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
