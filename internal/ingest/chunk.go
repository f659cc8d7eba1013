package ingest

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	encoder        = "cl100k_base"
	chunkMaxTokens = 500
)

// NewTokenCounter returns a token counting function backed by the
// tiktoken encoding used for chunk sizing.
func NewTokenCounter() (func(string) int, error) {
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// ChunkText splits article text into chunks of at most maxTokens,
// breaking on sentence boundaries. A single sentence over the budget
// becomes its own chunk rather than being split mid-sentence.
func ChunkText(text string, maxTokens int, countTokens func(string) int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	chunks := []string{}
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(current.String()))
		current.Reset()
		currentTokens = 0
	}

	for _, sentence := range sentences {
		tokens := countTokens(sentence)
		if currentTokens > 0 && currentTokens+tokens > maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += tokens
	}
	flush()

	return chunks
}

// splitSentences breaks text on Latin and CJK sentence terminators,
// keeping the terminator with its sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := []string{}
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '。', '！', '？', '\n':
			end := i + len(string(r))
			if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = end
		}
	}
	if sentence := strings.TrimSpace(text[start:]); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}
