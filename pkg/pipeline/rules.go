package pipeline

import (
	"strings"
	"time"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
)

// Rule declaratively rewrites column names and optionally cell values.
// Matching is case-insensitive. The standard set is commutative: any
// application order produces the same final schema.
type Rule struct {
	Name string
	// Match decides whether the rule applies to a column. It receives
	// the lowercased current name.
	Match func(lower string) bool
	// Rename rewrites the column name, or nil to keep it.
	Rename func(name string) string
	// Value rewrites each cell in the column, or nil to keep them.
	Value func(cell string) string
}

// ApplyRules applies every matching rule to every column, values
// first, then the rename.
func ApplyRules(t *formats.Table, rules []Rule) {
	for col := range t.Columns {
		for _, rule := range rules {
			if !rule.Match(strings.ToLower(t.Columns[col])) {
				continue
			}
			if rule.Value != nil {
				for _, row := range t.Rows {
					row[col] = rule.Value(row[col])
				}
			}
			if rule.Rename != nil {
				t.Columns[col] = rule.Rename(t.Columns[col])
			}
		}
	}
}

// StandardRules is the normalization applied to every vendor table:
// flattening prefixes dropped, money columns collapsed, date columns
// cast, spaces replaced, names uppercased.
func StandardRules() []Rule {
	return []Rule{
		StripPrefixRule("summaries."),
		StripPrefixRule("vendorDetails."),
		AmountRule(),
		CurrencyCodeRule(),
		DateCastRule(),
		SpaceRule(),
		UppercaseRule(),
	}
}

var namedRules = map[string]func() Rule{
	"strip_summaries":      func() Rule { return StripPrefixRule("summaries.") },
	"strip_vendor_details": func() Rule { return StripPrefixRule("vendorDetails.") },
	"amount":               AmountRule,
	"currency_code":        CurrencyCodeRule,
	"date_cast":            DateCastRule,
	"space_to_underscore":  SpaceRule,
	"uppercase":            UppercaseRule,
}

// RulesFor resolves configured rule names for a report kind. An empty
// list selects the standard set.
func RulesFor(names []string) ([]Rule, error) {
	if len(names) == 0 {
		return StandardRules(), nil
	}
	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		build, ok := namedRules[name]
		if !ok {
			return nil, errors.New(errors.ErrorTypeConfig, "unknown normalization rule").
				WithDetail("rule", name)
		}
		rules = append(rules, build())
	}
	return rules, nil
}

// StripPrefixRule removes a flattening prefix from column names. Both
// the dotted form and the underscore form left behind by the currency
// rule are recognized, so the standard rules commute.
func StripPrefixRule(prefix string) Rule {
	stem := strings.ToLower(strings.TrimSuffix(prefix, "."))
	return Rule{
		Name: "strip_prefix " + prefix,
		Match: func(lower string) bool {
			return strings.HasPrefix(lower, stem+".") || strings.HasPrefix(lower, stem+"_")
		},
		Rename: func(name string) string {
			return name[len(stem)+1:]
		},
	}
}

// AmountRule collapses nested money columns: a name containing
// ".amount" keeps only what precedes it.
func AmountRule() Rule {
	return Rule{
		Name:  "amount_suffix",
		Match: func(lower string) bool { return strings.Contains(lower, ".amount") },
		Rename: func(name string) string {
			lower := strings.ToLower(name)
			return name[:strings.Index(lower, ".amount")]
		},
	}
}

// CurrencyCodeRule keeps currency columns but flattens their dotted
// path into underscores.
func CurrencyCodeRule() Rule {
	return Rule{
		Name:  "currency_code",
		Match: func(lower string) bool { return strings.Contains(lower, ".currencycode") },
		Rename: func(name string) string {
			return strings.ReplaceAll(name, ".", "_")
		},
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102",
	"01/02/2006",
}

// DateCastRule casts cells of date-named columns to YYYY-MM-DD.
// Unparseable cells pass through untouched.
func DateCastRule() Rule {
	return Rule{
		Name:  "date_cast",
		Match: func(lower string) bool { return strings.Contains(lower, "date") },
		Value: func(cell string) string {
			if cell == "" {
				return cell
			}
			for _, layout := range dateLayouts {
				if ts, err := time.Parse(layout, cell); err == nil {
					return ts.Format("2006-01-02")
				}
			}
			return cell
		},
	}
}

// SpaceRule replaces spaces in column names with underscores.
func SpaceRule() Rule {
	return Rule{
		Name:  "space_to_underscore",
		Match: func(lower string) bool { return strings.Contains(lower, " ") },
		Rename: func(name string) string {
			return strings.ReplaceAll(name, " ", "_")
		},
	}
}

// UppercaseRule uppercases every column name.
func UppercaseRule() Rule {
	return Rule{
		Name:   "uppercase",
		Match:  func(string) bool { return true },
		Rename: strings.ToUpper,
	}
}
