package provider

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/utility-cli/internal/model"
)

//go:embed aliases.yaml
var aliasYAML []byte

type aliasEntry struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// loadAliasTable parses the embedded per-category alias table.
func loadAliasTable() (map[model.Category][]aliasEntry, error) {
	var raw map[string][]aliasEntry
	if err := yaml.Unmarshal(aliasYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "provider: parse alias table")
	}

	table := make(map[model.Category][]aliasEntry, len(raw))
	for key, entries := range raw {
		cat := model.Category(key)
		if !cat.Valid() {
			return nil, eris.Errorf("provider: unknown category %q in alias table", key)
		}
		table[cat] = entries
	}
	return table, nil
}
