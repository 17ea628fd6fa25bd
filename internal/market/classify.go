// Package market classifies provider names within deregulated energy markets,
// separating the retail seller a customer pays from the network owner that
// delivers the commodity.
package market

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
)

//go:embed markets.yaml
var marketYAML []byte

type marketEntry struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

type stateMarket struct {
	Retail  []marketEntry `yaml:"retail"`
	Network []marketEntry `yaml:"network"`
}

// ruleSet is one ordered match table: exact cleaned aliases plus containment
// patterns, preserving table order for auditable precedence.
type ruleSet struct {
	exact    map[string]string
	patterns []struct{ pattern, canonical string }
}

func buildRuleSet(entries []marketEntry) ruleSet {
	rs := ruleSet{exact: make(map[string]string)}
	for _, e := range entries {
		names := append([]string{e.Canonical}, e.Aliases...)
		for _, name := range names {
			cleaned := provider.CleanName(name)
			if cleaned == "" {
				continue
			}
			if _, dup := rs.exact[cleaned]; !dup {
				rs.exact[cleaned] = e.Canonical
			}
			if len(cleaned) > 5 {
				rs.patterns = append(rs.patterns, struct{ pattern, canonical string }{cleaned, e.Canonical})
			}
		}
	}
	return rs
}

func (rs ruleSet) match(cleaned string) (string, bool) {
	if canonical, ok := rs.exact[cleaned]; ok {
		return canonical, true
	}
	for _, p := range rs.patterns {
		if strings.Contains(cleaned, p.pattern) {
			return p.canonical, true
		}
	}
	return "", false
}

// Classifier answers market-structure questions from static per-state tables.
// Construct once via New; all methods are read-only after build.
type Classifier struct {
	retail  map[string]ruleSet
	network map[string]ruleSet
}

// New builds a Classifier from the embedded market tables.
func New() (*Classifier, error) {
	var raw map[string]stateMarket
	if err := yaml.Unmarshal(marketYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "market: parse market table")
	}

	c := &Classifier{
		retail:  make(map[string]ruleSet, len(raw)),
		network: make(map[string]ruleSet, len(raw)),
	}
	for state, m := range raw {
		key := strings.ToUpper(state)
		c.retail[key] = buildRuleSet(m.Retail)
		c.network[key] = buildRuleSet(m.Network)
	}
	return c, nil
}

// IsDeregulated reports whether the state has a deregulated energy market.
func (c *Classifier) IsDeregulated(state string) bool {
	_, ok := c.retail[strings.ToUpper(strings.TrimSpace(state))]
	return ok
}

// Classify determines whether a provider name is a retail seller or a network
// owner in the given state. Retail matches take priority over network
// matches; outside deregulated states everything is unknown.
func (c *Classifier) Classify(providerName, state string) model.MarketClassification {
	st := strings.ToUpper(strings.TrimSpace(state))
	mc := model.MarketClassification{
		ProviderName:  providerName,
		State:         st,
		Kind:          model.KindUnknown,
		CanonicalName: providerName,
	}

	retail, ok := c.retail[st]
	if !ok {
		return mc
	}
	mc.IsDeregulatedState = true

	cleaned := provider.CleanName(providerName)
	if cleaned == "" {
		return mc
	}

	if canonical, matched := retail.match(cleaned); matched {
		mc.Kind = model.KindRetailSeller
		mc.CanonicalName = canonical
		return mc
	}
	if canonical, matched := c.network[st].match(cleaned); matched {
		mc.Kind = model.KindNetworkOwner
		mc.CanonicalName = canonical
		return mc
	}
	return mc
}

// ShouldIgnoreMismatch reports whether a tenant/registry provider mismatch is
// explained by market structure rather than bad data: in a deregulated state,
// a tenant paying a retail seller while the registry names the network owner
// is not a conflict, and neither are two spellings of the same network owner.
func (c *Classifier) ShouldIgnoreMismatch(tenantName, apiName, state string) bool {
	if !c.IsDeregulated(state) {
		return false
	}

	tenant := c.Classify(tenantName, state)
	api := c.Classify(apiName, state)

	if tenant.Kind == model.KindRetailSeller && api.Kind == model.KindNetworkOwner {
		return true
	}
	if tenant.Kind == model.KindNetworkOwner && api.Kind == model.KindNetworkOwner &&
		tenant.CanonicalName == api.CanonicalName {
		return true
	}
	return false
}
