package rag

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koopa0/ragchat/internal/log"
)

// Request defaults applied when Config leaves the corresponding knob at zero.
const (
	DefaultTopK        = 5
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

// tracerName is the instrumentation scope for engine spans.
const tracerName = "github.com/koopa0/ragchat/internal/rag"

// Span attribute payload caps. Prompts and source blocks can reach tens of
// kilobytes; exporters drop oversized attributes, so cap them here.
const (
	maxContextAttrChars = 8000
	maxQueryAttrChars   = 512
	maxDocPreviewChars  = 2000
	maxDocPreviewCount  = 5
)

// Config assembles an Engine.
//
// Search and Generator may be nil when the matching Azure endpoint is not
// configured. Operations that need a missing collaborator return
// ErrConfiguration at call time rather than failing construction, so a
// partially configured process can still serve health checks and direct chat.
type Config struct {
	Search    SearchClient
	Generator Generator
	Logger    log.Logger

	// Model is the deployment name reported on generation telemetry.
	// Optional; the Generator is what actually selects the model.
	Model string

	// Request defaults. Zero values fall back to DefaultTopK,
	// DefaultMaxTokens and DefaultTemperature.
	TopK        int
	MaxTokens   int
	Temperature float64
}

// Engine orchestrates the retrieve-then-generate pipeline: search the index,
// fold the hits into a grounded system prompt, and call the model with the
// assembled transcript. The steps are strictly sequential; generation never
// starts before retrieval has finished.
//
// All configuration is captured immutably at construction time, so an Engine
// is safe for concurrent use.
type Engine struct {
	search SearchClient
	gen    Generator
	logger log.Logger
	tracer trace.Tracer
	model  string

	// Request defaults (captured at construction)
	topK        int
	maxTokens   int
	temperature float64
}

// New creates an Engine from cfg, applying defaults for unset knobs.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	return &Engine{
		search:      cfg.Search,
		gen:         cfg.Generator,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		model:       cfg.Model,
		topK:        topK,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Option adjusts a single engine call.
type Option func(*callOptions)

type callOptions struct {
	topK         int
	maxTokens    int
	temperature  float64
	systemPrompt string
	retrieval    bool
}

// resolve seeds per-call options from the engine defaults and applies opts.
func (e *Engine) resolve(opts []Option) callOptions {
	o := callOptions{
		topK:        e.topK,
		maxTokens:   e.maxTokens,
		temperature: e.temperature,
		retrieval:   true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTopK overrides how many documents to retrieve for this call.
// Non-positive values are ignored.
func WithTopK(k int) Option {
	return func(o *callOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMaxTokens overrides the completion token limit for this call.
// Non-positive values are ignored.
func WithMaxTokens(n int) Option {
	return func(o *callOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature overrides the sampling temperature for this call, including
// an explicit zero. Negative values are ignored.
func WithTemperature(t float64) Option {
	return func(o *callOptions) {
		if t >= 0 {
			o.temperature = t
		}
	}
}

// WithSystemPrompt replaces the system prompt for this call. In retrieval
// mode the override displaces the rendered sources prompt entirely; retrieved
// documents are still returned on the Result.
func WithSystemPrompt(prompt string) Option {
	return func(o *callOptions) {
		o.systemPrompt = prompt
	}
}

// WithoutRetrieval skips the search step so the model answers from the
// conversation alone. The Engine's SearchClient may be nil in this mode.
func WithoutRetrieval() Option {
	return func(o *callOptions) {
		o.retrieval = false
	}
}

// Search retrieves the topK most relevant documents for query. A topK of zero
// or less uses the engine default.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if e.search == nil {
		return nil, fmt.Errorf("%w: search endpoint not configured, set AZURE_AI_SEARCH_ENDPOINT", ErrConfiguration)
	}
	if topK <= 0 {
		topK = e.topK
	}

	ctx, span := e.tracer.Start(ctx, "rag.search", trace.WithAttributes(
		attribute.String("rag.query", truncate(query, maxQueryAttrChars)),
		attribute.Int("rag.top_k", topK),
	))
	defer span.End()

	docs, err := e.search.Search(ctx, query, topK)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %w", ErrRetrieval, err))
	}

	span.SetAttributes(attribute.Int("rag.documents_retrieved", len(docs)))
	if len(docs) > 0 {
		span.SetAttributes(attribute.Float64("rag.top_score", docs[0].RelevanceScore))
	}
	for i, doc := range docs {
		if i >= maxDocPreviewCount {
			break
		}
		source := doc.Source
		if source == "" {
			source = "unknown"
		}
		prefix := fmt.Sprintf("rag.document.%d.", i+1)
		span.SetAttributes(
			attribute.String(prefix+"source", source),
			attribute.Float64(prefix+"score", doc.RelevanceScore),
			attribute.String(prefix+"content", truncate(doc.Content, maxDocPreviewChars)),
		)
	}
	e.logger.Debug("documents retrieved", "count", len(docs), "top_k", topK)

	return docs, nil
}

// Documents is the retrieval entry point for search handlers and the CLI: it
// runs Search with the engine default when topK is not positive.
func (e *Engine) Documents(ctx context.Context, query string, topK int) ([]Document, error) {
	return e.Search(ctx, query, topK)
}

// Generate calls the model directly with a prepared transcript, skipping
// retrieval and prompt assembly. Used for auxiliary prompts such as
// evaluation judges.
func (e *Engine) Generate(ctx context.Context, messages []Message, opts ...Option) (*Generation, error) {
	return e.generate(ctx, messages, e.resolve(opts))
}

// Chat runs one complete turn: retrieve documents, format them into a
// grounded system prompt, and generate the answer. history is included
// verbatim before the current query.
func (e *Engine) Chat(ctx context.Context, query string, history []Message, opts ...Option) (*Result, error) {
	o := e.resolve(opts)

	ctx, span := e.tracer.Start(ctx, "rag.chat", trace.WithAttributes(
		attribute.String("rag.query", truncate(query, maxQueryAttrChars)),
		attribute.Int("rag.top_k", o.topK),
		attribute.Bool("rag.retrieval", o.retrieval),
		attribute.Int("rag.conversation_turns", len(history)),
	))
	defer span.End()

	a, err := e.assemble(ctx, span, query, history, o)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	gen, err := e.generate(ctx, a.messages, o)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &Result{
		Answer:           gen.Text,
		Documents:        a.docs,
		FormattedSources: a.sources,
		SystemPrompt:     a.system,
		Model:            gen.Model,
		Usage:            gen.Usage,
		FinishReason:     gen.FinishReason,
	}

	span.SetAttributes(
		attribute.Int("rag.answer_chars", len(res.Answer)),
		attribute.Int("gen_ai.usage.total_tokens", res.Usage.TotalTokens),
	)
	e.logger.Debug("chat turn completed",
		"documents", len(res.Documents),
		"answer_chars", len(res.Answer),
		"total_tokens", res.Usage.TotalTokens,
	)

	return res, nil
}

// ChatStream runs one turn like Chat but yields the answer incrementally.
// Fragments arrive as the model produces them; after the last fragment the
// sequence yields exactly one StreamValue with Done set, carrying the full
// Result. On error the sequence yields the error and stops without a Done
// value, so consumers must treat its absence as an incomplete answer. Empty
// fragments are dropped.
func (e *Engine) ChatStream(ctx context.Context, query string, history []Message, opts ...Option) iter.Seq2[StreamValue, error] {
	o := e.resolve(opts)

	return func(yield func(StreamValue, error) bool) {
		ctx, span := e.tracer.Start(ctx, "rag.chat_stream", trace.WithAttributes(
			attribute.String("rag.query", truncate(query, maxQueryAttrChars)),
			attribute.Int("rag.top_k", o.topK),
			attribute.Bool("rag.retrieval", o.retrieval),
			attribute.Int("rag.conversation_turns", len(history)),
		))
		defer span.End()

		a, err := e.assemble(ctx, span, query, history, o)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			yield(StreamValue{}, err)
			return
		}

		if e.gen == nil {
			err := fmt.Errorf("%w: OpenAI endpoint not configured, set AZURE_OPENAI_ENDPOINT", ErrConfiguration)
			span.SetStatus(codes.Error, err.Error())
			yield(StreamValue{}, err)
			return
		}

		genCtx, genSpan := e.tracer.Start(ctx, "rag.generate", trace.WithAttributes(
			attribute.String("gen_ai.request.model", e.model),
			attribute.Int("gen_ai.request.max_tokens", o.maxTokens),
			attribute.Float64("gen_ai.request.temperature", o.temperature),
			attribute.Bool("gen_ai.request.streaming", true),
			attribute.Int("rag.message_count", len(a.messages)),
		))
		defer genSpan.End()

		req := GenerateRequest{Messages: a.messages, MaxTokens: o.maxTokens, Temperature: o.temperature}
		var answer strings.Builder
		fragments := 0
		for fragment, streamErr := range e.gen.GenerateStream(genCtx, req) {
			if streamErr != nil {
				wrapped := fail(genSpan, fmt.Errorf("%w: %w", ErrGeneration, streamErr))
				span.SetStatus(codes.Error, wrapped.Error())
				yield(StreamValue{}, wrapped)
				return
			}
			if fragment == "" {
				continue
			}
			answer.WriteString(fragment)
			fragments++
			if !yield(StreamValue{Fragment: fragment}, nil) {
				genSpan.SetAttributes(attribute.Bool("rag.stream_abandoned", true))
				return
			}
		}

		genSpan.SetAttributes(
			attribute.Int("rag.stream_fragments", fragments),
			attribute.Int("rag.answer_chars", answer.Len()),
		)

		res := &Result{
			Answer:           answer.String(),
			Documents:        a.docs,
			FormattedSources: a.sources,
			SystemPrompt:     a.system,
		}
		span.SetAttributes(attribute.Int("rag.answer_chars", answer.Len()))
		e.logger.Debug("stream completed", "fragments", fragments, "answer_chars", answer.Len())

		yield(StreamValue{Done: true, Result: res}, nil)
	}
}

// assembled is the prompt state Chat and ChatStream share after the
// retrieval and formatting steps.
type assembled struct {
	docs     []Document
	sources  string
	system   string
	messages []Message
}

// assemble runs the pre-generation steps: retrieve documents (unless
// disabled), format them into a sources block, choose the system prompt, and
// build the transcript. Progress is recorded as events on span, the enclosing
// chat span.
func (e *Engine) assemble(ctx context.Context, span trace.Span, query string, history []Message, o callOptions) (assembled, error) {
	var a assembled

	if o.retrieval {
		docs, err := e.Search(ctx, query, o.topK)
		if err != nil {
			return a, err
		}
		a.docs = docs

		a.sources = FormatSources(docs)
		span.AddEvent("sources.formatted", trace.WithAttributes(
			attribute.Int("rag.documents_retrieved", len(docs)),
			attribute.Int("rag.sources_chars", len(a.sources)),
		))
		span.SetAttributes(attribute.String("rag.context", truncate(a.sources, maxContextAttrChars)))

		a.system = SystemPrompt(a.sources)
	} else {
		a.system = DefaultSystemPrompt
	}
	if o.systemPrompt != "" {
		a.system = o.systemPrompt
	}

	a.messages = BuildMessages(a.system, history, query)
	span.AddEvent("messages.built", trace.WithAttributes(attribute.Int("rag.message_count", len(a.messages))))

	return a, nil
}

// generate runs the model call child span for non-streaming requests.
func (e *Engine) generate(ctx context.Context, messages []Message, o callOptions) (*Generation, error) {
	if e.gen == nil {
		return nil, fmt.Errorf("%w: OpenAI endpoint not configured, set AZURE_OPENAI_ENDPOINT", ErrConfiguration)
	}

	ctx, span := e.tracer.Start(ctx, "rag.generate", trace.WithAttributes(
		attribute.String("gen_ai.request.model", e.model),
		attribute.Int("gen_ai.request.max_tokens", o.maxTokens),
		attribute.Float64("gen_ai.request.temperature", o.temperature),
		attribute.Bool("gen_ai.request.streaming", false),
		attribute.Int("rag.message_count", len(messages)),
	))
	defer span.End()

	gen, err := e.gen.Generate(ctx, GenerateRequest{
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %w", ErrGeneration, err))
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", gen.Model),
		attribute.String("gen_ai.response.finish_reason", gen.FinishReason),
		attribute.Int("gen_ai.usage.input_tokens", gen.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", gen.Usage.CompletionTokens),
	)

	return gen, nil
}

// fail records err on span, marks the span failed, and returns err unchanged.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// truncate caps s at max bytes for span attributes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
