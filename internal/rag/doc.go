// Package rag implements the retrieve-then-generate chat pipeline over
// Azure AI Search and Azure OpenAI.
//
// # Overview
//
// The Engine answers a user query in four sequential steps:
//
//	User Query
//	     |
//	     v
//	Azure AI Search (hybrid: vector + semantic)
//	     |
//	     +-- top-k Documents
//	     |
//	     v
//	FormatSources ("name: content" blocks)
//	     |
//	     v
//	SystemPrompt + BuildMessages
//	     |
//	     v
//	Azure OpenAI (grounded completion)
//
// Generation never starts before retrieval has finished, so the model only
// ever sees the final set of sources.
//
// # Collaborators
//
// The Engine talks to its backends through two small interfaces, SearchClient
// and Generator, implemented by the azsearch and openai packages. Either may
// be nil when the matching endpoint is not configured; operations that need
// the missing collaborator fail fast with ErrConfiguration.
//
// # Streaming
//
// ChatStream yields answer fragments as they arrive and finishes with exactly
// one StreamValue whose Done field is set, carrying the assembled Result. A
// sequence that ends without a Done value was cut short by an error or by the
// consumer breaking out of the loop.
//
// # Telemetry
//
// Every chat turn runs under a "rag.chat" span with "rag.search" and
// "rag.generate" children. Tracing is best-effort: spans are no-ops unless an
// OpenTelemetry provider is installed, and telemetry never changes the
// outcome of a call.
package rag
