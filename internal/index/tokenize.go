package index

import (
	"regexp"
	"strings"
	"unicode"
)

var codeTokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// codeAwareTokens splits text into lowercase tokens, breaking camelCase,
// PascalCase, and snake_case identifiers apart so "getUserById" indexes
// as "get", "user", "by", "id". Tokens shorter than two characters are
// dropped as noise.
func codeAwareTokens(text string) []string {
	var tokens []string
	for _, word := range codeTokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// codeAwareText pre-splits text on code-identifier boundaries and
// rejoins it with spaces, so bleve's standard analyzer (which only
// splits on whitespace/punctuation) still separates identifier parts.
func codeAwareText(text string) string {
	return strings.Join(codeAwareTokens(text), " ")
}
