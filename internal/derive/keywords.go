package derive

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"cyberetl/internal/dataset"
)

// DefaultCyberKeywords are the phrases that mark a filing as mentioning
// cybersecurity.
var DefaultCyberKeywords = []string{
	"cybersecurity", "cyber security", "data breach", "hacking",
	"malware", "ransomware", "phishing", "unauthorized access",
	"security incident", "data theft", "privacy breach",
}

// fold lower-cases s and strips combining marks, so "Cybersécurity" and
// "CYBERSECURITY" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// KeywordMatcher scans text for any of a fixed keyword set.
type KeywordMatcher struct {
	keywords []string
}

// NewKeywordMatcher folds keywords once; with none given it uses
// DefaultCyberKeywords.
func NewKeywordMatcher(keywords ...string) *KeywordMatcher {
	if len(keywords) == 0 {
		keywords = DefaultCyberKeywords
	}
	m := &KeywordMatcher{keywords: make([]string, 0, len(keywords))}
	for _, k := range keywords {
		if k = fold(strings.TrimSpace(k)); k != "" {
			m.keywords = append(m.keywords, k)
		}
	}
	return m
}

// Match reports whether text contains a keyword. Nulls never match.
func (m *KeywordMatcher) Match(text any) bool {
	if dataset.IsNull(text) {
		return false
	}
	s := fold(dataset.AsString(text))
	for _, k := range m.keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// DetectCyberMention matches text against DefaultCyberKeywords.
func DetectCyberMention(text any) bool {
	return defaultMatcher.Match(text)
}

var defaultMatcher = NewKeywordMatcher()

// TagCyberMentions returns a copy of filings with cybersecurity_mention set
// from textField. When the text column is absent the input is returned
// unchanged and tagged is false.
func TagCyberMentions(filings *dataset.Dataset, textField string, m *KeywordMatcher) (out *dataset.Dataset, tagged bool) {
	if filings == nil || !filings.HasColumn(textField) {
		return filings, false
	}
	if m == nil {
		m = defaultMatcher
	}
	out = filings.Clone()
	out.SetColumn("cybersecurity_mention", dataset.KindBoolean)
	for _, r := range out.Rows {
		r["cybersecurity_mention"] = m.Match(r[textField])
	}
	return out, true
}
