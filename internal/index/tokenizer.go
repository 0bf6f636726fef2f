package index

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/character"
)

// MinWordLength is the shortest single word kept as its own token.
const MinWordLength = 2

// analyzer splits on whitespace and lower-cases. No stemming, no stop words.
var analyzer = &analysis.DefaultAnalyzer{
	Tokenizer: character.NewCharacterTokenizer(func(r rune) bool {
		return !unicode.IsSpace(r)
	}),
	TokenFilters: []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
	},
}

// Words returns the lower-cased whitespace-separated words of text.
func Words(text string) []string {
	stream := analyzer.Analyze([]byte(text))
	words := make([]string, 0, len(stream))
	for _, tok := range stream {
		words = append(words, string(tok.Term))
	}
	return words
}

// Normalize lower-cases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(Words(text), " ")
}

// Tokenize returns the index tokens of a display name: the whole
// normalized name, then every word of at least MinWordLength runes.
// Duplicates are removed; order is first occurrence.
func Tokenize(name string) []string {
	words := Words(name)
	if len(words) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(words)+1)
	tokens := make([]string, 0, len(words)+1)
	add := func(tok string) {
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	add(strings.Join(words, " "))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= MinWordLength {
			add(w)
		}
	}
	return tokens
}

// BrandToken returns the single token indexed for a brand.
func BrandToken(brand string) string {
	return Normalize(brand)
}
