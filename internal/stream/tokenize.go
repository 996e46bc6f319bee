package stream

import "regexp"

var tokenPattern = regexp.MustCompile(`\s*\S+`)

// Tokenize splits text into whitespace-delimited tokens. Each token keeps the
// whitespace that preceded it, and trailing whitespace is appended to the last
// token, so concatenating the result reproduces text exactly.
//
//	Tokenize("hello world") == []string{"hello", " world"}
func Tokenize(text string) []string {
	spans := tokenPattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return nil
	}

	tokens := make([]string, len(spans))
	for i, span := range spans {
		tokens[i] = text[span[0]:span[1]]
	}
	if end := spans[len(spans)-1][1]; end < len(text) {
		tokens[len(tokens)-1] += text[end:]
	}
	return tokens
}
