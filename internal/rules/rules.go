// Package rules holds the ordered routing table that maps export filenames
// to destination folders.
package rules

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"exportwatch/internal/config"
	"exportwatch/internal/mover"
	"exportwatch/internal/yearparser"
)

// Rule maps a filename predicate and extension set to a destination folder,
// year strategy and overwrite policy. Rules are values: a Table copies them
// on construction and never hands out pointers into its own slice.
type Rule struct {
	Name         string
	Fragment     string         // case-insensitive substring predicate
	Pattern      *regexp.Regexp // regex predicate, used when Fragment is empty
	Destination  string         // slash separated, relative to the destination root
	YearStrategy yearparser.Strategy
	Extensions   []string // lower case without dot; empty accepts any extension
	Overwrite    mover.OverwritePolicy
	OutputName   string // optional rename template, see TargetName
}

// Matches reports whether filename satisfies both the predicate and the
// extension restriction.
func (r Rule) Matches(filename string) bool {
	name := filepath.Base(filename)
	if !r.extensionAllowed(name) {
		return false
	}
	if r.Fragment != "" {
		return strings.Contains(strings.ToLower(name), strings.ToLower(r.Fragment))
	}
	return r.Pattern != nil && r.Pattern.MatchString(name)
}

func (r Rule) extensionAllowed(name string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, allowed := range r.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Predicate returns a printable form of the rule's predicate.
func (r Rule) Predicate() string {
	if r.Fragment != "" {
		return r.Fragment
	}
	if r.Pattern != nil {
		return "/" + r.Pattern.String() + "/"
	}
	return ""
}

// YearBased reports whether the rule files exports under a year folder.
func (r Rule) YearBased() bool {
	return r.YearStrategy != yearparser.None
}

// DestinationDir joins root, the rule's destination and year (when non-empty).
func (r Rule) DestinationDir(root, year string) string {
	dir := filepath.Join(root, filepath.FromSlash(r.Destination))
	if year != "" {
		dir = filepath.Join(dir, year)
	}
	return dir
}

// TargetName returns the name the file should carry at its destination.
// Without an OutputName template the original filename is kept. Templates
// may use {timestamp}, {name}, {base} and {ext} (lower case, with the dot).
func (r Rule) TargetName(filename string, at time.Time) string {
	name := filepath.Base(filename)
	if r.OutputName == "" {
		return name
	}
	ext := filepath.Ext(name)
	return strings.NewReplacer(
		"{timestamp}", at.Format(mover.TimestampLayout),
		"{name}", name,
		"{base}", strings.TrimSuffix(name, ext),
		"{ext}", strings.ToLower(ext),
	).Replace(r.OutputName)
}

func (r Rule) validate() error {
	if r.Name == "" {
		return errors.New("rule name cannot be empty")
	}
	if r.Fragment == "" && r.Pattern == nil {
		return fmt.Errorf("rule %s: needs a fragment or a pattern", r.Name)
	}
	if r.Destination == "" {
		return fmt.Errorf("rule %s: destination cannot be empty", r.Name)
	}
	if !r.YearStrategy.Valid() {
		return fmt.Errorf("rule %s: unknown year strategy %q", r.Name, string(r.YearStrategy))
	}
	switch r.Overwrite {
	case mover.TimestampPrefix, mover.OverwriteReplace:
	default:
		return fmt.Errorf("rule %s: unknown overwrite policy %q", r.Name, string(r.Overwrite))
	}
	return nil
}

// MatchResult represents the result of matching a filename against the table.
type MatchResult struct {
	Matched bool
	Rule    Rule
	Index   int // position of the rule in declaration order
}

// Table is an immutable, ordered list of rules. The first matching rule wins.
type Table struct {
	rules []Rule
}

// NewTable validates rules and returns a table that evaluates them in the
// given order.
func NewTable(rules ...Rule) (*Table, error) {
	seen := make(map[string]int, len(rules))
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.Overwrite == "" {
			r.Overwrite = mover.TimestampPrefix
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(r.Name)
		if first, ok := seen[key]; ok {
			return nil, fmt.Errorf("rule %s at index %d duplicates rule at index %d", r.Name, i, first)
		}
		seen[key] = i
		r.Extensions = normaliseExtensions(r.Extensions)
		out = append(out, r)
	}
	return &Table{rules: out}, nil
}

// Match evaluates rules in declaration order and returns the first rule whose
// predicate and extension set accept filename. Only the base name is used.
func (t *Table) Match(filename string) *MatchResult {
	for i, r := range t.rules {
		if r.Matches(filename) {
			return &MatchResult{Matched: true, Rule: r, Index: i}
		}
	}
	return &MatchResult{Matched: false, Index: -1}
}

// Rules returns a copy of the rules in declaration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// FromSpec converts a configured rule into a Rule.
func FromSpec(spec config.RuleSpec) (Rule, error) {
	strategy, err := yearparser.ParseStrategy(spec.YearStrategy)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", spec.Name, err)
	}
	policy, err := mover.ParseOverwritePolicy(spec.Overwrite)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", spec.Name, err)
	}

	r := Rule{
		Name:         spec.Name,
		Fragment:     spec.Contains,
		Destination:  spec.Destination,
		YearStrategy: strategy,
		Extensions:   spec.Extensions,
		Overwrite:    policy,
		OutputName:   spec.OutputName,
	}
	if spec.Pattern != "" {
		r.Pattern, err = regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s: invalid pattern: %w", spec.Name, err)
		}
	}
	return r, nil
}

// FromConfig builds the table for cfg: the default catalog followed by the
// configured rules, or only the configured rules when ReplaceDefaultRules is set.
func FromConfig(cfg *config.Configuration) (*Table, error) {
	var all []Rule
	if !cfg.ReplaceDefaultRules {
		all = append(all, DefaultRules()...)
	}
	for _, spec := range cfg.Rules {
		r, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		all = append(all, r)
	}
	return NewTable(all...)
}

func normaliseExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
