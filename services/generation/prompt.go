package generation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/upb/paper-rag/models"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const systemPrompt = `You are a research assistant answering questions about academic papers.
Answer using only the numbered sources provided. Cite sources inline as [1], [2], etc.
If the sources do not contain the answer, say that you could not find it in the indexed papers.`

const noSourcesNote = "No relevant passages were found in the indexed papers."

// Message is one chat turn sent to the language model
type Message struct {
	Role    string
	Content string
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

func getEncoding() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoding, encodingErr
}

// CountTokens counts cl100k_base tokens in text. It falls back to a
// four-characters-per-token estimate when the encoding cannot be loaded.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := getEncoding()
	if err != nil {
		return (len([]rune(text)) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// PromptBuilder formats sources and history into chat messages.
// A positive HistoryTokenBudget drops the oldest history turns until the history fits.
type PromptBuilder struct {
	HistoryTokenBudget int
}

// Build returns the system prompt, the retained history and the user turn carrying the context
func (b PromptBuilder) Build(query string, sources []models.Source, history []models.HistoryMessage) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})

	for _, h := range b.trimHistory(history) {
		messages = append(messages, Message{Role: normalizeRole(h.Role), Content: h.Content})
	}

	messages = append(messages, Message{Role: "user", Content: FormatContext(query, sources)})
	return messages
}

// FormatContext renders the numbered sources followed by the question
func FormatContext(query string, sources []models.Source) string {
	var sb strings.Builder
	sb.WriteString("Sources:\n")
	if len(sources) == 0 {
		sb.WriteString(noSourcesNote)
		sb.WriteString("\n")
	}
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, s.Title, s.Section, s.ChunkText)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return sb.String()
}

func (b PromptBuilder) trimHistory(history []models.HistoryMessage) []models.HistoryMessage {
	if b.HistoryTokenBudget <= 0 {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += CountTokens(history[i].Content)
		if total > b.HistoryTokenBudget {
			break
		}
		start = i
	}
	return history[start:]
}

func normalizeRole(role string) string {
	switch strings.ToLower(role) {
	case "assistant", "model":
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}
