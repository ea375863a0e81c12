// Package provider decides which model backend an agent binds to.
//
// Resolution never fails: names are looked up in the catalog, then matched
// against the known model families, then fall back to the default family.
package provider

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Family is a model family the LLM layer knows how to talk to.
type Family int

// Known families. AzureOpenAI is the zero value and the default.
const (
	AzureOpenAI Family = iota
	Claude
	OpenAI
)

// DefaultFamily is used when nothing else matches.
const DefaultFamily = AzureOpenAI

// AzureAPIVersion is the Azure OpenAI API version requests are pinned to.
const AzureAPIVersion = "2024-12-01-preview"

type familyInfo struct {
	name    string
	api     string
	model   string
	version string
	keyEnv  string
}

func (f Family) info() familyInfo {
	switch f {
	case Claude:
		return familyInfo{name: "claude", api: "anthropic", model: "claude-sonnet-4-5", keyEnv: "ANTHROPIC_API_KEY"}
	case OpenAI:
		return familyInfo{name: "OpenAI", api: "openai", model: "gpt-5-mini", keyEnv: "OPENAI_API_KEY"}
	default:
		return familyInfo{name: "AzureOpenAI", api: "azure", model: "gpt-4.1", version: AzureAPIVersion, keyEnv: "AZURE_OPENAI_API_KEY"}
	}
}

// String returns the family's canonical name.
func (f Family) String() string { return f.info().name }

// API returns the name of the API configuration the family uses.
func (f Family) API() string { return f.info().api }

// DefaultModel returns the model id used when only the family is known.
func (f Family) DefaultModel() string { return f.info().model }

// APIVersion returns the pinned API version, if the family has one.
func (f Family) APIVersion() string { return f.info().version }

// KeyEnv returns the environment variable conventionally holding the key.
func (f Family) KeyEnv() string { return f.info().keyEnv }

// Families lists every known family in declaration order.
func Families() []Family {
	return []Family{AzureOpenAI, Claude, OpenAI}
}

// ParseFamily maps a provider alias or a concrete model id to its family.
func ParseFamily(name string) (Family, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "":
		return DefaultFamily, false
	case strings.HasPrefix(n, "claude"), n == "anthropic":
		return Claude, true
	case strings.HasPrefix(n, "azure"):
		return AzureOpenAI, true
	case strings.HasPrefix(n, "openai"),
		strings.HasPrefix(n, "gpt-"),
		isReasoningModel(n):
		return OpenAI, true
	default:
		return DefaultFamily, false
	}
}

func isReasoningModel(n string) bool {
	for _, p := range []string{"o1", "o3", "o4"} {
		if n == p || strings.HasPrefix(n, p+"-") {
			return true
		}
	}
	return false
}

// Selection is a resolved binding from a provider name to a concrete model.
type Selection struct {
	Provider   string
	Family     Family
	ModelID    string
	APIVersion string
}

func (s Selection) String() string {
	return fmt.Sprintf("%s (%s)", s.ModelID, s.Family)
}

// Catalog maps configured provider names to model ids.
type Catalog map[string]string

// DefaultCatalog returns the built-in provider shortcuts.
func DefaultCatalog() Catalog {
	return Catalog{
		"claude":      "claude-sonnet-4-5",
		"OpenAI":      "gpt-5-mini",
		"OpenAI-mini": "gpt-4.1-mini",
		"AzureOpenAI": "gpt-4.1",
	}
}

func (c Catalog) get(name string) (string, bool) {
	if id, ok := c[name]; ok && id != "" {
		return id, true
	}
	// Keys differing only by case resolve to the first in sorted order.
	keys := slices.Sorted(maps.Keys(c))
	for _, k := range keys {
		if id := c[k]; strings.EqualFold(k, name) && id != "" {
			return id, true
		}
	}
	return "", false
}

// lookup resolves one name; ok reports whether anything but the default
// family fallback produced the result.
func lookup(name string, catalog Catalog) (Selection, bool) {
	name = strings.TrimSpace(name)
	if id, ok := catalog.get(name); ok {
		fam, known := ParseFamily(name)
		if !known {
			fam, _ = ParseFamily(id)
		}
		return newSelection(name, fam, id), true
	}
	if fam, ok := ParseFamily(name); ok {
		id := fam.DefaultModel()
		if !isAlias(name) {
			id = name
		}
		return newSelection(name, fam, id), true
	}
	return newSelection(name, DefaultFamily, DefaultFamily.DefaultModel()), false
}

func isAlias(name string) bool {
	switch strings.ToLower(name) {
	case "claude", "anthropic", "openai", "azureopenai", "azure", "openai-mini":
		return true
	}
	return false
}

func newSelection(name string, fam Family, id string) Selection {
	return Selection{Provider: name, Family: fam, ModelID: id, APIVersion: fam.APIVersion()}
}

// Resolve returns the main and reasoning selections for the given names.
//
// An empty reasoning name, or one that resolves to nothing but the default
// family fallback, yields the main selection.
func Resolve(provider, reasoning string, catalog Catalog) (Selection, Selection) {
	main, _ := lookup(provider, catalog)
	if strings.TrimSpace(reasoning) == "" {
		return main, main
	}
	r, ok := lookup(reasoning, catalog)
	if !ok {
		return main, main
	}
	return main, r
}

// ResolutionError reports a provider name that matched nothing.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Name)
}

// Lookup is the strict form of Resolve for a single name.
func Lookup(name string, catalog Catalog) (Selection, error) {
	s, ok := lookup(name, catalog)
	if !ok {
		return s, &ResolutionError{Name: name}
	}
	return s, nil
}
