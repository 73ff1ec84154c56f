package rag

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt is used for direct (non-retrieval) chat when the caller
// does not supply a system prompt of its own.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// noSources is substituted for the sources block when retrieval returns no
// documents, so the model declines to answer instead of hallucinating.
const noSources = "No sources available."

// ragPromptPreamble instructs the model to answer strictly from the supplied
// sources. Adapted from Azure's azure-search-openai-demo grounding prompt.
const ragPromptPreamble = `You are an intelligent assistant helping users with questions based on the provided documents.
Answer ONLY with the facts listed in the sources below. If there isn't enough information below, say you don't know.
Do not generate answers that don't use the sources below. If asking a clarifying question would help, ask the question.

For tabular information return it as an html table. Do not return markdown format for tables.
Each source has a name followed by colon and the actual information, always include the source name for each fact you use in the response.
Use square brackets to reference the source, for example [source1.pdf]. Don't combine sources, list each source separately, for example [source1.pdf][source2.pdf].

`

// SystemPrompt renders the grounded system prompt for a formatted sources
// block produced by FormatSources.
func SystemPrompt(sources string) string {
	return ragPromptPreamble + sources + "\n"
}

// FormatSources renders retrieved documents into the sources block the system
// prompt embeds. Each document becomes one "name: content" entry where the
// name is the source file (or "unknown") with a #page=N suffix for paginated
// sources; entries are separated by blank lines. An empty slice yields a
// fixed no-sources sentence.
func FormatSources(docs []Document) string {
	if len(docs) == 0 {
		return noSources
	}

	entries := make([]string, 0, len(docs))
	for _, doc := range docs {
		name := doc.Source
		if name == "" {
			name = "unknown"
		}
		if doc.PageNumber != 0 {
			name = fmt.Sprintf("%s#page=%d", name, doc.PageNumber)
		}
		entries = append(entries, name+": "+doc.Content)
	}

	return strings.Join(entries, "\n\n")
}

// FormatCitations renders retrieved documents as a numbered list for display
// alongside an answer.
func FormatCitations(docs []Document) string {
	if len(docs) == 0 {
		return "No documents retrieved."
	}

	citations := make([]string, 0, len(docs))
	for i, doc := range docs {
		title := doc.Title
		if title == "" {
			title = "Untitled"
		}
		entry := fmt.Sprintf("**%d. %s**", i+1, title)
		if doc.Source != "" {
			entry += "\n   " + doc.Source
		}
		if doc.PageNumber != 0 {
			entry += fmt.Sprintf(" (Page %d)", doc.PageNumber)
		}
		if doc.RerankScore != 0 {
			entry += fmt.Sprintf("\n   relevance: %.2f", doc.RerankScore)
		}
		citations = append(citations, entry)
	}

	return strings.Join(citations, "\n\n")
}

// BuildMessages assembles the transcript sent to the model: the system
// prompt, prior turns verbatim and in order, then the current user query.
// History trimming is the caller's concern.
func BuildMessages(systemPrompt string, history []Message, query string) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: query})
	return messages
}
