package vendormail

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field names understood by the default grammar.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldZip       = "zip"
	FieldService   = "service"
	FieldFrequency = "frequency"
	FieldPrice     = "price"
	FieldDate      = "date"
	FieldTime      = "time"
	FieldAddress   = "address"
	FieldTotal     = "total"
)

//go:embed grammar.yaml
var defaultGrammarYAML []byte

// FieldRule declares how one field is found in a notification body. Labels
// expand to "Label: value" patterns followed by "Label value" patterns;
// Patterns are appended verbatim and must have one capture group.
type FieldRule struct {
	Field    string   `yaml:"field"`
	Labels   []string `yaml:"labels"`
	Patterns []string `yaml:"patterns"`
}

type grammarFile struct {
	Fields []FieldRule `yaml:"fields"`
}

// Grammar is an ordered pattern list per field. It is immutable once built
// and safe for concurrent use.
type Grammar struct {
	order    []string
	patterns map[string][]*regexp.Regexp
}

// DefaultGrammar returns the grammar embedded in the binary.
func DefaultGrammar() *Grammar {
	g, err := ParseGrammar(defaultGrammarYAML)
	if err != nil {
		panic(fmt.Sprintf("vendormail: embedded grammar: %v", err))
	}
	return g
}

// LoadGrammar reads a grammar file. An empty path yields the default grammar.
func LoadGrammar(path string) (*Grammar, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultGrammar(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	return ParseGrammar(data)
}

func ParseGrammar(data []byte) (*Grammar, error) {
	var file grammarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode grammar: %w", err)
	}
	return NewGrammar(file.Fields)
}

func NewGrammar(rules []FieldRule) (*Grammar, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("grammar has no fields")
	}
	g := &Grammar{patterns: make(map[string][]*regexp.Regexp, len(rules))}
	for _, rule := range rules {
		field := strings.TrimSpace(rule.Field)
		if field == "" {
			return nil, fmt.Errorf("grammar rule without field name")
		}
		if _, dup := g.patterns[field]; dup {
			return nil, fmt.Errorf("grammar field %q declared twice", field)
		}

		sources := labelPatterns(rule.Labels)
		sources = append(sources, rule.Patterns...)
		if len(sources) == 0 {
			return nil, fmt.Errorf("grammar field %q has no labels or patterns", field)
		}

		compiled := make([]*regexp.Regexp, 0, len(sources))
		for _, src := range sources {
			re, err := regexp.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("grammar field %q: %w", field, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("grammar field %q: pattern %q has no capture group", field, src)
			}
			compiled = append(compiled, re)
		}
		g.order = append(g.order, field)
		g.patterns[field] = compiled
	}
	return g, nil
}

// labelPatterns puts every strict "Label:" form ahead of every loose form so
// a longer loose label never shadows a shorter strict one.
func labelPatterns(labels []string) []string {
	var strict, loose []string
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		quoted := strings.ReplaceAll(regexp.QuoteMeta(label), " ", `[ \t]+`)
		strict = append(strict, `(?i)\b`+quoted+`[ \t]*:[ \t]*(\S[^\r\n]*)`)
		loose = append(loose, `(?i)\b`+quoted+`[ \t]+(\S[^\r\n]*)`)
	}
	return append(strict, loose...)
}

// Extract returns the first capture of the first matching pattern for field,
// trimmed. Unknown fields and bodies with no match yield "".
func (g *Grammar) Extract(body, field string) string {
	for _, re := range g.patterns[field] {
		if m := re.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// ExtractAll runs every field of the grammar over body.
func (g *Grammar) ExtractAll(body string) map[string]string {
	out := make(map[string]string, len(g.order))
	for _, field := range g.order {
		out[field] = g.Extract(body, field)
	}
	return out
}

func (g *Grammar) Fields() []string {
	return append([]string(nil), g.order...)
}
