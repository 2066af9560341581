package service

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"offerguard-backend/models"

	"gopkg.in/yaml.v3"
)

//go:embed rules/default_rules.yaml
var defaultRules []byte

var ErrInvalidRules = errors.New("invalid pattern rules")

// ruleFile is the YAML layout of a rule set
type ruleFile struct {
	Jurisdictions map[string][]RuleSpec `yaml:"jurisdictions"`
}

// RuleSpec is one rule as written in a rule file
type RuleSpec struct {
	Topic       string   `yaml:"topic"`
	Severity    string   `yaml:"severity"`
	Confidence  float64  `yaml:"confidence"`
	Citation    string   `yaml:"citation"`
	Explanation string   `yaml:"explanation"`
	Phrases     []string `yaml:"phrases"`
	Patterns    []string `yaml:"patterns"`
}

// Rule is a compiled pattern rule
type Rule struct {
	Topic       string
	Severity    models.Severity
	Confidence  float64
	Citation    *string
	Explanation string
	matchers    []*regexp.Regexp
}

// RuleSet holds compiled rules per jurisdiction
type RuleSet struct {
	byJurisdiction map[string][]Rule
}

// DefaultRules compiles the rule set shipped with the binary
func DefaultRules() (*RuleSet, error) {
	return LoadRules(bytes.NewReader(defaultRules))
}

// LoadRulesFile compiles the rule file at path
func LoadRulesFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}

// LoadRules parses and compiles a YAML rule set. Any invalid rule fails the
// whole load so that bad rules surface at startup.
func LoadRules(r io.Reader) (*RuleSet, error) {
	var file ruleFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	rs := &RuleSet{byJurisdiction: make(map[string][]Rule)}
	for code, specs := range file.Jurisdictions {
		j := models.NormalizeJurisdiction(code)
		for i, spec := range specs {
			rule, err := compileRule(spec)
			if err != nil {
				return nil, fmt.Errorf("%w: %s rule %d: %v", ErrInvalidRules, j, i, err)
			}
			rs.byJurisdiction[j] = append(rs.byJurisdiction[j], rule)
		}
	}
	return rs, nil
}

func compileRule(spec RuleSpec) (Rule, error) {
	topic := models.NormalizeTopic(spec.Topic)
	if topic == "" {
		return Rule{}, errors.New("topic is required")
	}
	severity := models.Severity(strings.ToLower(strings.TrimSpace(spec.Severity)))
	if !severity.Valid() {
		return Rule{}, fmt.Errorf("invalid severity %q", spec.Severity)
	}
	if spec.Confidence < 0 || spec.Confidence > 1 {
		return Rule{}, fmt.Errorf("confidence %v outside [0,1]", spec.Confidence)
	}
	if strings.TrimSpace(spec.Explanation) == "" {
		return Rule{}, errors.New("explanation is required")
	}

	rule := Rule{
		Topic:       topic,
		Severity:    severity,
		Confidence:  spec.Confidence,
		Citation:    models.StringPtr(strings.TrimSpace(spec.Citation)),
		Explanation: strings.TrimSpace(spec.Explanation),
	}

	for _, phrase := range spec.Phrases {
		expr := phraseExpr(phrase)
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return Rule{}, fmt.Errorf("phrase %q: %v", phrase, err)
		}
		rule.matchers = append(rule.matchers, re)
	}
	for _, pattern := range spec.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("pattern %q: %v", pattern, err)
		}
		rule.matchers = append(rule.matchers, re)
	}

	if len(rule.matchers) == 0 {
		return Rule{}, errors.New("at least one phrase or pattern is required")
	}
	return rule, nil
}

// phraseExpr turns a literal phrase into a case-insensitive expression that
// tolerates any whitespace between words
func phraseExpr(phrase string) string {
	words := strings.Fields(normalizeText(phrase))
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	expr := strings.Join(quoted, `\s+`)

	first, _ := utf8.DecodeRuneInString(words[0])
	last, _ := utf8.DecodeLastRuneInString(words[len(words)-1])
	if isWordRune(first) {
		expr = `\b` + expr
	}
	if isWordRune(last) {
		expr = expr + `\b`
	}
	return "(?i)" + expr
}

// Rules returns the rules for a jurisdiction, nil when none exist
func (rs *RuleSet) Rules(jurisdiction string) []Rule {
	if rs == nil {
		return nil
	}
	return rs.byJurisdiction[models.NormalizeJurisdiction(jurisdiction)]
}

// Jurisdictions lists the jurisdictions with rules, sorted
func (rs *RuleSet) Jurisdictions() []string {
	if rs == nil {
		return []string{}
	}
	codes := make([]string, 0, len(rs.byJurisdiction))
	for code := range rs.byJurisdiction {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len is the total number of rules
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	n := 0
	for _, rules := range rs.byJurisdiction {
		n += len(rules)
	}
	return n
}

// firstMatch returns the earliest match of any of the rule's matchers
func (r *Rule) firstMatch(text string) ([]int, bool) {
	var best []int
	for _, re := range r.matchers {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			best = loc
		}
	}
	return best, best != nil
}
