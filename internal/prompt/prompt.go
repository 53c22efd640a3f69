package prompt

import (
	"os"
	"strings"
)

// DefaultSystemPrompt is used whenever the prompt file is missing, empty, or
// unreadable. Loading never fails; the bot always has a prompt.
const DefaultSystemPrompt = "Você é Sherlock, um assistente inteligente e prestativo. " +
	"Responda de forma clara, concisa e amigável em português brasileiro. " +
	"Você tem acesso ao histórico da conversa para manter contexto."

// Load reads the system prompt from a Markdown file, dropping everything up
// to and including the leading heading. Call it once at startup and pass the
// result down; nothing re-reads the file at request time.
func Load(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return DefaultSystemPrompt
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var promptLines []string
	skipHeading := true
	for _, line := range lines {
		if skipHeading {
			if strings.HasPrefix(line, "#") {
				skipHeading = false
			}
			continue
		}
		if strings.TrimSpace(line) != "" {
			promptLines = append(promptLines, line)
		}
	}

	final := strings.TrimSpace(strings.Join(promptLines, "\n"))
	if final == "" {
		return DefaultSystemPrompt
	}
	return final
}
