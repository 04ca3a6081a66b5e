package discovery

import (
	"strings"

	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
)

// Rule maps a log substring to an event kind. Matching is case-sensitive.
type Rule struct {
	Marker string
	Kind   domain.EventKind
}

// DefaultRules recognize pump.fun program instructions and liquidity exits.
// New instruction names that match no marker go unclassified.
var DefaultRules = []Rule{
	{Marker: "Instruction: Create", Kind: domain.KindCreate},
	{Marker: "Instruction: Initialize", Kind: domain.KindCreate},
	{Marker: "Instruction: Buy", Kind: domain.KindBuy},
	{Marker: "Instruction: Sell", Kind: domain.KindSell},
	{Marker: "withdraw", Kind: domain.KindLiquidityChange},
	{Marker: "remove_liquidity", Kind: domain.KindLiquidityChange},
	{Marker: "migrate", Kind: domain.KindLiquidityChange},
}

// Classifier maps program log records to the set of event kinds they carry.
type Classifier struct {
	rules []Rule
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRules appends rules to the table.
func WithRules(rules ...Rule) ClassifierOption {
	return func(c *Classifier) {
		c.rules = append(c.rules, rules...)
	}
}

// NewClassifier creates a classifier over DefaultRules plus any extra rules.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{rules: append([]Rule(nil), DefaultRules...)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns every kind whose marker occurs in any line.
// An empty set means the record carries nothing of interest.
func (c *Classifier) Classify(logs []string) domain.KindSet {
	var set domain.KindSet
	for _, r := range c.rules {
		if set.Has(r.Kind) {
			continue
		}
		for _, line := range logs {
			if strings.Contains(line, r.Marker) {
				set = set.With(r.Kind)
				break
			}
		}
	}
	for _, k := range set.Kinds() {
		observability.RecordEventClassified(k.String())
	}
	return set
}
