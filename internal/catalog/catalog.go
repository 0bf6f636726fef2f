// Package catalog defines the vehicle catalog schema and loads it from disk.
//
// A Document is one model of one brand; its Configs are the purchasable
// variants. Fields set on a Config override the same fields on its Document.
// That rule lives in Resolve and nowhere else.
package catalog

import (
	"fmt"
	"maps"
	"strings"
)

// Document is a catalog record. It is immutable once ingested.
type Document struct {
	ID      string         `json:"id"`
	Brand   string         `json:"brand"`
	Name    string         `json:"name"`
	Price   float64        `json:"price,omitempty"`
	Specs   map[string]any `json:"specs,omitempty"`
	Configs []Config       `json:"configs,omitempty"`
}

// Config is a variant of a Document.
type Config struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Price float64        `json:"price,omitempty"`
	Specs map[string]any `json:"specs,omitempty"`
}

// DisplayName returns "Brand Name".
func (d Document) DisplayName() string {
	return strings.TrimSpace(d.Brand + " " + d.Name)
}

// Validate reports the first missing required field.
func (d Document) Validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("document has no id")
	case strings.TrimSpace(d.Name) == "":
		return fmt.Errorf("document %q has no name", d.ID)
	case strings.TrimSpace(d.Brand) == "":
		return fmt.Errorf("document %q has no brand", d.ID)
	}
	return nil
}

// Normalize validates d and returns a cleaned copy: fields are trimmed,
// configs without a name are dropped and configs without an id get
// "<document id>#<position>". The second return value counts dropped configs.
func Normalize(d Document) (Document, int, error) {
	if err := d.Validate(); err != nil {
		return Document{}, 0, err
	}

	out := Document{
		ID:    strings.TrimSpace(d.ID),
		Brand: strings.TrimSpace(d.Brand),
		Name:  strings.TrimSpace(d.Name),
		Price: d.Price,
		Specs: maps.Clone(d.Specs),
	}
	dropped := 0
	for i, c := range d.Configs {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			dropped++
			continue
		}
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = fmt.Sprintf("%s#%d", out.ID, i)
		}
		out.Configs = append(out.Configs, Config{
			ID:    id,
			Name:  name,
			Price: c.Price,
			Specs: maps.Clone(c.Specs),
		})
	}
	return out, dropped, nil
}

// Config returns the config with the given id.
func (d Document) Config(id string) (Config, bool) {
	for _, c := range d.Configs {
		if c.ID == id {
			return c, true
		}
	}
	return Config{}, false
}

// Resolved is a Document with one of its Configs applied.
type Resolved struct {
	DocumentID string         `json:"document_id"`
	ConfigID   string         `json:"config_id,omitempty"`
	Brand      string         `json:"brand"`
	Name       string         `json:"name"`
	Variant    string         `json:"variant,omitempty"`
	Price      float64        `json:"price"`
	Specs      map[string]any `json:"specs,omitempty"`
}

// Resolve applies cfg over doc. A nil cfg resolves the document alone.
// A config price of zero means unset; config specs override document specs
// key by key.
func Resolve(doc Document, cfg *Config) Resolved {
	r := Resolved{
		DocumentID: doc.ID,
		Brand:      doc.Brand,
		Name:       doc.Name,
		Price:      doc.Price,
		Specs:      maps.Clone(doc.Specs),
	}
	if cfg == nil {
		return r
	}

	r.ConfigID = cfg.ID
	r.Variant = cfg.Name
	if cfg.Price != 0 {
		r.Price = cfg.Price
	}
	if len(cfg.Specs) > 0 {
		if r.Specs == nil {
			r.Specs = make(map[string]any, len(cfg.Specs))
		}
		maps.Copy(r.Specs, cfg.Specs)
	}
	return r
}

// DisplayText returns "Brand Name" or "Brand Name Variant".
func (r Resolved) DisplayText() string {
	parts := []string{r.Brand, r.Name}
	if r.Variant != "" {
		parts = append(parts, r.Variant)
	}
	return strings.Join(parts, " ")
}
