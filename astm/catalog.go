package astm

import (
	"fmt"
	"maps"

	"github.com/BurntSushi/toml"
)

// Test codes of the cobas c 111 and their display names.
var defaultTests = map[string]string{
	"767": "Glucosa",
	"687": "ALT (SGPT)",
	"418": "AST (SGOT)",
	"685": "Fosfatasa Alcalina",
	"690": "Bilirrubina Total",
	"712": "Bilirrubina Directa",
	"734": "Albúmina",
	"780": "Urea",
	"790": "Creatinina",
	"800": "Colesterol Total",
	"810": "Triglicéridos",
	"820": "HDL",
	"830": "LDL",
	"840": "Proteínas Totales",
	"850": "Sodio",
	"860": "Potasio",
	"870": "Cloro",
	"880": "Calcio",
	"890": "Fósforo",
}

// Catalog maps instrument test codes to names. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	names map[string]string
}

// NewCatalog returns the built in catalog with extra merged over it.
func NewCatalog(extra map[string]string) *Catalog {
	names := maps.Clone(defaultTests)
	for code, name := range extra {
		names[code] = name
	}
	return &Catalog{names: names}
}

// LoadCatalog reads a TOML file with a [tests] table of code = "name" pairs
// and merges it over the built in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	var file struct {
		Tests map[string]string `toml:"tests"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return NewCatalog(file.Tests), nil
}

// Lookup returns the name for code, or a name derived from the code itself
// when it is not known.
func (c *Catalog) Lookup(code string) string {
	if name, ok := c.names[code]; ok {
		return name
	}
	return fmt.Sprintf("Prueba %s", code)
}

// Known reports whether code has a catalog entry.
func (c *Catalog) Known(code string) bool {
	_, ok := c.names[code]
	return ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.names)
}
