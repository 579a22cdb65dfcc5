// Package voices holds the static catalog of Kokoro voices grouped by
// language.
package voices

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// DefaultSample is spoken for previews when a language has no sample sentence.
const DefaultSample = "Hello! This is a short preview of my voice."

// Voice is a single selectable voice.
type Voice struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ShortName returns the display name without its parenthesised description.
func (v Voice) ShortName() string {
	if i := strings.Index(v.Name, " ("); i >= 0 {
		return v.Name[:i]
	}
	return v.Name
}

// Language groups the voices that speak one language.
type Language struct {
	Label  string  `yaml:"label"`
	Sample string  `yaml:"sample"`
	Voices []Voice `yaml:"voices"`
}

// Catalog is the ordered, immutable set of languages and voices.
type Catalog struct {
	languages []Language
	byID      map[string]entry
}

type entry struct {
	voice    Voice
	language int
}

type document struct {
	Languages []Language `yaml:"languages"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path. An empty path returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Voice ids must be unique across languages.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}
	if len(doc.Languages) == 0 {
		return nil, errors.New("voice catalog has no languages")
	}

	c := &Catalog{
		languages: doc.Languages,
		byID:      make(map[string]entry),
	}
	for li, lang := range doc.Languages {
		if lang.Label == "" {
			return nil, fmt.Errorf("voice catalog: language %d has no label", li)
		}
		if len(lang.Voices) == 0 {
			return nil, fmt.Errorf("voice catalog: language %q has no voices", lang.Label)
		}
		for vi := range lang.Voices {
			v := &lang.Voices[vi]
			if v.ID == "" {
				return nil, fmt.Errorf("voice catalog: voice without id in %q", lang.Label)
			}
			if prev, ok := c.byID[v.ID]; ok {
				return nil, fmt.Errorf("voice catalog: duplicate voice id %q in %q and %q",
					v.ID, doc.Languages[prev.language].Label, lang.Label)
			}
			if v.Name == "" {
				v.Name = v.ID
			}
			c.byID[v.ID] = entry{voice: *v, language: li}
		}
	}
	return c, nil
}

// Languages returns the languages in catalog order.
func (c *Catalog) Languages() []Language {
	out := make([]Language, len(c.languages))
	copy(out, c.languages)
	return out
}

// Voice looks up a voice by id.
func (c *Catalog) Voice(id string) (Voice, bool) {
	e, ok := c.byID[id]
	return e.voice, ok
}

// LanguageOf returns the language a voice belongs to.
func (c *Catalog) LanguageOf(id string) (Language, bool) {
	e, ok := c.byID[id]
	if !ok {
		return Language{}, false
	}
	return c.languages[e.language], true
}

// Sample returns the preview sentence for a voice.
func (c *Catalog) Sample(id string) string {
	if lang, ok := c.LanguageOf(id); ok && lang.Sample != "" {
		return lang.Sample
	}
	return DefaultSample
}

// First returns the first voice of the first language.
func (c *Catalog) First() Voice {
	return c.languages[0].Voices[0]
}

// Len returns the total number of voices.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Match is a voice returned by Filter.
type Match struct {
	Voice    Voice
	Language string
}

// Filter fuzzy-matches query against voice ids, names and language labels.
// An empty query returns every voice in catalog order.
func (c *Catalog) Filter(query string) []Match {
	var all []Match
	for _, lang := range c.languages {
		for _, v := range lang.Voices {
			all = append(all, Match{Voice: c.byID[v.ID].voice, Language: lang.Label})
		}
	}
	if strings.TrimSpace(query) == "" {
		return all
	}

	results := fuzzy.FindFrom(query, matchSource(all))
	out := make([]Match, 0, len(results))
	for _, r := range results {
		out = append(out, all[r.Index])
	}
	return out
}

type matchSource []Match

func (m matchSource) String(i int) string {
	return m[i].Voice.ID + " " + m[i].Voice.Name + " " + m[i].Language
}

func (m matchSource) Len() int { return len(m) }
