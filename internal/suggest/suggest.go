// Package suggest derives CLAUDE.md rule suggestions from recurring terms
// in auto-captured session memories. It is pure frequency analysis.
package suggest

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/lazypower/mem/internal/store"
)

const (
	minTermMemories   = 3
	minBigramMemories = 2
	maxTerms          = 15
	maxBigrams        = 10
	minTokenRunes     = 3
)

// NoPatterns is emitted when no term or phrase recurs often enough.
const NoPatterns = "No recurring patterns detected yet. Capture more sessions for better suggestions.\n"

// stopWords holds English function words plus the boilerplate every auto
// capture contains, so neither is ever suggested as a rule.
var stopWords = toSet(
	"the", "a", "an", "is", "was", "to", "in", "of", "and", "or", "with", "for", "on", "at", "be",
	"has", "have", "had", "by", "as", "this", "that", "it", "from", "are", "were", "not", "no",
	"so", "if", "but", "its", "via", "use", "used", "new", "get", "set", "run", "add", "fix",
	"now", "also", "just", "into", "than", "all", "any", "one", "two", "do", "done", "we", "my",
	"our", "you", "your", "will", "can", "may", "must", "then", "when", "where", "what", "how",
	"out", "up", "end", "been", "about", "more", "some", "such", "them", "they",

	"session", "git", "ended", "changes", "detected", "captured", "utc", "project", "repo", "mem",
	"memory", "context", "00", "date", "time", "turns", "duration", "tokens", "cache", "read",
	"write", "user", "assistant", "transcript",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Candidate is a term or phrase and the number of memories it appears in.
type Candidate struct {
	Text     string
	Memories int
}

// Analysis is the result of scanning a set of memories.
type Analysis struct {
	Sessions int
	Bigrams  []Candidate
	Terms    []Candidate
}

// Analyze counts, per memory, the distinct terms and adjacent term pairs
// in title and content. Terms found in at least three memories and pairs
// found in at least two become candidates, most frequent first.
func Analyze(memories []store.Memory) Analysis {
	terms := map[string]int{}
	bigrams := map[string]int{}

	for _, m := range memories {
		raw := splitTokens(m.Title + " " + m.Content)

		seenTerms := map[string]bool{}
		for _, tok := range raw {
			if keep(tok) && !seenTerms[tok] {
				seenTerms[tok] = true
				terms[tok]++
			}
		}

		// Pairs are taken from the unfiltered sequence so "tokio and runtime"
		// never yields "tokio runtime".
		seenBigrams := map[string]bool{}
		for i := 0; i+1 < len(raw); i++ {
			if !keep(raw[i]) || !keep(raw[i+1]) {
				continue
			}
			bg := raw[i] + " " + raw[i+1]
			if !seenBigrams[bg] {
				seenBigrams[bg] = true
				bigrams[bg]++
			}
		}
	}

	return Analysis{
		Sessions: len(memories),
		Bigrams:  rank(bigrams, minBigramMemories, maxBigrams),
		Terms:    rank(terms, minTermMemories, maxTerms),
	}
}

// Rules renders suggestions as CLAUDE.md-ready markdown.
func Rules(memories []store.Memory, now time.Time) string {
	a := Analyze(memories)

	var b strings.Builder
	fmt.Fprintf(&b, "## Suggested rules (from mem pattern analysis)\n<!-- based on %d sessions, %s -->\n\n",
		a.Sessions, now.UTC().Format("2006-01-02"))

	if len(a.Bigrams) == 0 && len(a.Terms) == 0 {
		b.WriteString(NoPatterns)
		return b.String()
	}

	if len(a.Bigrams) > 0 {
		b.WriteString("### Recurring phrase patterns\n\n")
		for _, c := range a.Bigrams {
			fmt.Fprintf(&b, "- [detected phrase: %q appears in %dx sessions] Consider adding a rule about: `%s`\n",
				c.Text, c.Memories, c.Text)
		}
		b.WriteString("\n")
	}

	if len(a.Terms) > 0 {
		b.WriteString("### Recurring single-term patterns\n\n")
		for _, c := range a.Terms {
			fmt.Fprintf(&b, "- [detected term: %q appears in %dx sessions] Consider adding: \"This project uses/involves `%s`\"\n",
				c.Text, c.Memories, c.Text)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func rank(counts map[string]int, minMemories, limit int) []Candidate {
	var out []Candidate
	for text, n := range counts {
		if n >= minMemories {
			out = append(out, Candidate{Text: text, Memories: n})
		}
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Memories, a.Memories); c != 0 {
			return c
		}
		return cmp.Compare(a.Text, b.Text)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// splitTokens lowercases text and splits it on anything that is not a
// letter, digit, underscore or hyphen, keeping tokens of three or more runes.
func splitTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			tokens = append(tokens, strings.ToLower(f))
		}
	}
	return tokens
}

func keep(tok string) bool {
	if _, stop := stopWords[tok]; stop {
		return false
	}
	return !isYear(tok)
}

// isYear matches 2000 through 2099.
func isYear(tok string) bool {
	if len(tok) != 4 || !strings.HasPrefix(tok, "20") {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
