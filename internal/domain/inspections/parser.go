package inspections

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParserConfig holds the heuristics used to read free-text model output.
// Zero-valued fields fall back to DefaultParserConfig.
type ParserConfig struct {
	// Each score pattern holds the number in its first capture group.
	// Patterns are tried in order against the whole text. A minus sign only
	// counts when no digit precedes it, so "85-90점" reads as 90.
	ScorePatterns []string `yaml:"scorePatterns"`
	// nil means unset; 0 is a valid default.
	DefaultScore *int `yaml:"defaultScore"`

	// Heading synonyms, highest priority first.
	IssueHeadings          []string `yaml:"issueHeadings"`
	RecommendationHeadings []string `yaml:"recommendationHeadings"`

	// SectionEnd marks the next heading-like line. A blank line also ends a section.
	SectionEnd string `yaml:"sectionEnd"`
	// ListItemPattern matches a bullet or enumerator prefix, separators included.
	ListItemPattern string `yaml:"listItemPattern"`

	NoIssues          string `yaml:"noIssues"`
	NoRecommendations string `yaml:"noRecommendations"`
}

// DefaultParserConfig returns the built-in patterns for Korean and English
// inspection reports.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		ScorePatterns: []string{
			`(?i)점수[:\s]*(-?\d+)`,
			`(?i)(?:^|[^\d])(-?\d+)점`,
			`(?i)score[:\s]*(-?\d+)`,
		},
		DefaultScore:           IntPtr(75),
		IssueHeadings:          []string{"문제점", "문제", "issues", "위험"},
		RecommendationHeadings: []string{"권고", "개선", "조치", "recommendations", "방안"},
		SectionEnd:             `\n[가-힣A-Za-z]+:`,
		ListItemPattern:        `^(?:[-*•·\d]+[.)\s]|[A-Za-z][.)]\s)[.)\s]*`,
		NoIssues:               "특별한 문제점이 발견되지 않았습니다.",
		NoRecommendations:      "현재 상태를 유지하시기 바랍니다.",
	}
}

// IntPtr returns a pointer to n, for optional config fields.
func IntPtr(n int) *int { return &n }

// Merge overlays the non-zero fields of c on top of base.
func (c ParserConfig) Merge(base ParserConfig) ParserConfig {
	out := base
	if len(c.ScorePatterns) > 0 {
		out.ScorePatterns = c.ScorePatterns
	}
	if c.DefaultScore != nil {
		out.DefaultScore = IntPtr(*c.DefaultScore)
	}
	if len(c.IssueHeadings) > 0 {
		out.IssueHeadings = c.IssueHeadings
	}
	if len(c.RecommendationHeadings) > 0 {
		out.RecommendationHeadings = c.RecommendationHeadings
	}
	if c.SectionEnd != "" {
		out.SectionEnd = c.SectionEnd
	}
	if c.ListItemPattern != "" {
		out.ListItemPattern = c.ListItemPattern
	}
	if c.NoIssues != "" {
		out.NoIssues = c.NoIssues
	}
	if c.NoRecommendations != "" {
		out.NoRecommendations = c.NoRecommendations
	}
	return out
}

// Parser turns one free-text analysis into an AnalysisResult. It never fails:
// anything it cannot recognize degrades to the configured defaults.
type Parser struct {
	cfg     ParserConfig
	scores  []*regexp.Regexp
	issues  []*regexp.Regexp
	recs    []*regexp.Regexp
	end     *regexp.Regexp
	item    *regexp.Regexp
	nowFunc func() time.Time
}

// NewParser compiles cfg (merged over the defaults).
func NewParser(cfg ParserConfig) (*Parser, error) {
	cfg = cfg.Merge(DefaultParserConfig())
	p := &Parser{cfg: cfg, nowFunc: time.Now}

	for _, s := range cfg.ScorePatterns {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("score pattern %q: %w", s, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("score pattern %q: needs a capture group", s)
		}
		p.scores = append(p.scores, re)
	}
	var err error
	if p.issues, err = headingPatterns(cfg.IssueHeadings); err != nil {
		return nil, err
	}
	if p.recs, err = headingPatterns(cfg.RecommendationHeadings); err != nil {
		return nil, err
	}
	if p.end, err = regexp.Compile(cfg.SectionEnd); err != nil {
		return nil, fmt.Errorf("section end pattern: %w", err)
	}
	if p.item, err = regexp.Compile(cfg.ListItemPattern); err != nil {
		return nil, fmt.Errorf("list item pattern: %w", err)
	}
	return p, nil
}

// NewDefaultParser returns a parser over DefaultParserConfig.
func NewDefaultParser() *Parser {
	p, err := NewParser(ParserConfig{})
	if err != nil {
		panic(err)
	}
	return p
}

// WithClock swaps the timestamp source, for tests.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	cp := *p
	cp.nowFunc = now
	return &cp
}

// Config returns the effective configuration.
func (p *Parser) Config() ParserConfig { return p.cfg }

func headingPatterns(headings []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(headings))
	for _, h := range headings {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(h) + `[:\s]*`)
		if err != nil {
			return nil, fmt.Errorf("heading %q: %w", h, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Parse reads rawText produced for itemLabel.
func (p *Parser) Parse(rawText, itemLabel string) AnalysisResult {
	return AnalysisResult{
		ComplianceScore: p.Score(rawText),
		IssuesFound:     p.section(rawText, p.issues, p.cfg.NoIssues),
		Recommendations: p.section(rawText, p.recs, p.cfg.NoRecommendations),
		AIAnalysis:      rawText,
		AnalysisTime:    p.nowFunc(),
		ItemAnalyzed:    itemLabel,
	}
}

// Score extracts the compliance score, clamped to [0,100].
func (p *Parser) Score(text string) int {
	for _, re := range p.scores {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			if !errors.Is(err, strconv.ErrRange) {
				continue
			}
			// out of int range: the sign still tells which bound applies
			n = 100
			if strings.HasPrefix(m[1], "-") {
				n = 0
			}
		}
		return clampScore(n)
	}
	return *p.cfg.DefaultScore
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func (p *Parser) section(text string, headings []*regexp.Regexp, sentinel string) []string {
	body, ok := p.extract(text, headings)
	if !ok {
		return []string{sentinel}
	}
	items := p.listItems(body)
	if len(items) == 0 {
		return []string{sentinel}
	}
	return items
}

// extract returns the text after the first matching heading up to the next
// heading-like line, a blank line or the end of text.
func (p *Parser) extract(text string, headings []*regexp.Regexp) (string, bool) {
	for _, re := range headings {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := text[loc[1]:]
		end := len(rest)
		if i := strings.Index(rest, "\n\n"); i >= 0 && i < end {
			end = i
		}
		if m := p.end.FindStringIndex(rest); m != nil && m[0] < end {
			end = m[0]
		}
		return strings.TrimSpace(rest[:end]), true
	}
	return "", false
}

func (p *Parser) listItems(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	var items []string
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if loc := p.item.FindStringIndex(t); loc != nil {
			if it := strings.TrimSpace(t[loc[1]:]); it != "" {
				items = append(items, it)
			}
			continue
		}
		if !strings.Contains(t, ":") {
			items = append(items, t)
		}
	}
	if len(items) == 0 {
		return []string{body}
	}
	return items
}
