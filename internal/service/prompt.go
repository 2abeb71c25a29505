package service

import "strings"

const contextDelimiter = "\n---\n"

// BuildPrompt renders the grounded answering prompt. contexts must not be empty.
func BuildPrompt(query string, contexts []string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful RAG assistant. Use ONLY the provided context.\n")
	sb.WriteString("If the answer isn't present, say you don't know.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(strings.Join(contexts, contextDelimiter))
	sb.WriteString("\n\nAnswer with brief citations like [source].")
	return sb.String()
}
