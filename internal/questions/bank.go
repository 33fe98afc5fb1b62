// Package questions holds the built-in question bank: single-answer
// questions grouped by category and two-name pair templates answered with a
// percentage.
package questions

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names
const (
	CategoryNaughty = "naughty_18_plus"
	CategoryParty   = "party_social"
	CategoryMixed   = "mixed"
	CategoryPair    = "pair_frenzy"
)

// DefaultPairOptions are used when a pair template omits its options.
var DefaultPairOptions = []int{0, 25, 50, 75, 100}

//go:embed bank.yaml
var bankYAML []byte

// Category is a named group of single-answer questions.
type Category struct {
	Name      string   `yaml:"name" json:"name"`
	Label     string   `yaml:"label" json:"label"`
	Questions []string `yaml:"questions" json:"questions"`
}

// PairTemplate is a question about two friends, {A} and {B}, answered with
// one of the percentage options.
type PairTemplate struct {
	Template string `yaml:"template" json:"template"`
	Options  []int  `yaml:"options" json:"options"`

	pattern *regexp.Regexp
}

// Render substitutes both names into the template.
func (p PairTemplate) Render(a, b string) string {
	return strings.NewReplacer("{A}", a, "{B}", b).Replace(p.Template)
}

// Bank is the parsed question bank.
type Bank struct {
	Categories    []Category     `yaml:"categories" json:"categories"`
	PairTemplates []PairTemplate `yaml:"pair_templates" json:"pairTemplates"`

	byQuestion map[string]string
}

// Match describes how a poll question is answered.
type Match struct {
	Category string
	// Options is set for pair questions; other questions are answered by
	// picking a friend.
	Options []int
}

// IsPair reports whether the question is answered with a percentage.
func (m Match) IsPair() bool {
	return m.Category == CategoryPair
}

// OptionLabels returns the option values as strings, the form votes and
// results store them in.
func (m Match) OptionLabels() []string {
	labels := make([]string, len(m.Options))
	for i, opt := range m.Options {
		labels[i] = strconv.Itoa(opt)
	}
	return labels
}

// Default returns the embedded bank. It panics if the embedded YAML is
// invalid, which tests guard against.
func Default() *Bank {
	b, err := Parse(bankYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	return b
}

// Parse reads a bank with strict validation. Unknown YAML fields are
// rejected.
func Parse(data []byte) (*Bank, error) {
	var b Bank
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}

	b.byQuestion = make(map[string]string)
	for _, c := range b.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("question bank category missing required field: name")
		}
		for _, q := range c.Questions {
			if prev, dup := b.byQuestion[q]; dup {
				return nil, fmt.Errorf("question %q listed in both %s and %s", q, prev, c.Name)
			}
			b.byQuestion[q] = c.Name
		}
	}

	for i := range b.PairTemplates {
		p := &b.PairTemplates[i]
		if !strings.Contains(p.Template, "{A}") || !strings.Contains(p.Template, "{B}") {
			return nil, fmt.Errorf("pair template %q must contain {A} and {B}", p.Template)
		}
		if len(p.Options) == 0 {
			p.Options = append([]int(nil), DefaultPairOptions...)
		}
		sort.Ints(p.Options)
		p.pattern = compileTemplate(p.Template)
	}

	return &b, nil
}

// compileTemplate turns "... {A} ... {B} ..." into an anchored pattern with
// the placeholders matching any name.
func compileTemplate(tmpl string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(tmpl)
	quoted = strings.NewReplacer(regexp.QuoteMeta("{A}"), ".+", regexp.QuoteMeta("{B}"), ".+").Replace(quoted)
	return regexp.MustCompile("^" + quoted + "$")
}

// Match classifies a poll question. Bank questions get their category, text
// matching a pair template is a pair question with that template's options,
// and anything else is a custom question in the mixed category.
func (b *Bank) Match(question string) Match {
	question = strings.TrimSpace(question)
	if cat, ok := b.byQuestion[question]; ok {
		return Match{Category: cat}
	}
	for _, p := range b.PairTemplates {
		if p.pattern.MatchString(question) {
			return Match{Category: CategoryPair, Options: append([]int(nil), p.Options...)}
		}
	}
	return Match{Category: CategoryMixed}
}

// Count returns the number of single-answer questions.
func (b *Bank) Count() int {
	return len(b.byQuestion)
}
