package eval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/rag"
)

// Defaults applied when a runner config leaves the knob at zero.
const (
	DefaultConcurrency       = 4
	DefaultRequestsPerSecond = 2.0
	DefaultPassThreshold     = 3
)

// ChatTarget runs one full pipeline turn for an evaluation question.
// *rag.Engine satisfies it.
type ChatTarget interface {
	Chat(ctx context.Context, query string, history []rag.Message, opts ...rag.Option) (*rag.Result, error)
}

// QualityConfig assembles a Quality runner.
type QualityConfig struct {
	// Target answers the evaluation questions.
	Target ChatTarget

	// Judge scores the answers. Usually the same engine as Target.
	Judge Generator

	// Logger receives progress events. Defaults to a nop logger.
	Logger log.Logger

	// Concurrency bounds in-flight cases. Zero means DefaultConcurrency.
	Concurrency int

	// RequestsPerSecond paces case starts. Zero means
	// DefaultRequestsPerSecond.
	RequestsPerSecond float64

	// PassThreshold is the lowest passing score on the 1-5 scale.
	// Zero means DefaultPassThreshold.
	PassThreshold int
}

// Quality evaluates pipeline answers for relevance and groundedness.
type Quality struct {
	target      ChatTarget
	judge       judge
	logger      log.Logger
	concurrency int
	limiter     *rate.Limiter
	threshold   int
}

// NewQuality creates a quality runner.
func NewQuality(cfg QualityConfig) (*Quality, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("%w: evaluation target is required", rag.ErrConfiguration)
	}
	if cfg.Judge == nil {
		return nil, fmt.Errorf("%w: evaluation judge is required", rag.ErrConfiguration)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	threshold := cfg.PassThreshold
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}

	return &Quality{
		target:      cfg.Target,
		judge:       judge{gen: cfg.Judge},
		logger:      logger.With("component", "eval"),
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		threshold:   threshold,
	}, nil
}

// QualityResult is one evaluated case. Error carries the first pipeline or
// judge failure; scores before the failure are kept.
type QualityResult struct {
	Question     string `json:"question"`
	Truth        string `json:"truth,omitempty"`
	Answer       string `json:"answer,omitempty"`
	Relevance    Score  `json:"relevance"`
	Groundedness Score  `json:"groundedness"`
	Error        string `json:"error,omitempty"`
}

// QualitySummary aggregates one run. Rates and means cover judged cases
// only; errored cases count toward Errored.
type QualitySummary struct {
	Cases                int     `json:"cases"`
	Errored              int     `json:"errored"`
	MeanRelevance        float64 `json:"mean_relevance"`
	MeanGroundedness     float64 `json:"mean_groundedness"`
	RelevancePassRate    float64 `json:"relevance_pass_rate"`
	GroundednessPassRate float64 `json:"groundedness_pass_rate"`
}

// QualityReport is the full outcome of one run.
type QualityReport struct {
	RunID   string          `json:"run_id"`
	Results []QualityResult `json:"results"`
	Summary QualitySummary  `json:"summary"`
}

// Run evaluates every case and reports per-case results plus a summary.
// Results keep the input order regardless of completion order. Per-case
// failures are recorded in the result, not returned; Run fails only when
// ctx is canceled.
func (q *Quality) Run(ctx context.Context, cases []GroundTruth) (*QualityReport, error) {
	runID := uuid.New().String()
	q.logger.Info("quality evaluation started", "run_id", runID, "cases", len(cases))

	results := make([]QualityResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency)
	for i, gt := range cases {
		g.Go(func() error {
			if err := q.limiter.Wait(gctx); err != nil {
				return err
			}
			results[i] = q.evaluate(gctx, gt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("quality run aborted: %w", err)
	}

	summary := q.summarize(results)
	q.logger.Info("quality evaluation completed",
		"run_id", runID,
		"cases", summary.Cases,
		"errored", summary.Errored,
		"relevance_pass_rate", summary.RelevancePassRate,
		"groundedness_pass_rate", summary.GroundednessPassRate)

	return &QualityReport{RunID: runID, Results: results, Summary: summary}, nil
}

func (q *Quality) evaluate(ctx context.Context, gt GroundTruth) QualityResult {
	res := QualityResult{Question: gt.Question, Truth: gt.Truth}

	out, err := q.target.Chat(ctx, gt.Question, nil)
	if err != nil {
		q.logger.Warn("pipeline call failed", "question", gt.Question, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Answer = out.Answer

	rel, err := q.judge.relevance(ctx, gt.Question, out.Answer)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Relevance = rel

	grd, err := q.judge.groundedness(ctx, gt.Question, out.Answer, gt.Truth)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Groundedness = grd
	return res
}

func (q *Quality) summarize(results []QualityResult) QualitySummary {
	s := QualitySummary{Cases: len(results)}

	judged := 0
	var relSum, grdSum, relPass, grdPass int
	for _, r := range results {
		if r.Error != "" {
			s.Errored++
			continue
		}
		judged++
		relSum += r.Relevance.Value
		grdSum += r.Groundedness.Value
		if r.Relevance.Value >= q.threshold {
			relPass++
		}
		if r.Groundedness.Value >= q.threshold {
			grdPass++
		}
	}
	if judged == 0 {
		return s
	}

	s.MeanRelevance = float64(relSum) / float64(judged)
	s.MeanGroundedness = float64(grdSum) / float64(judged)
	s.RelevancePassRate = float64(relPass) / float64(judged)
	s.GroundednessPassRate = float64(grdPass) / float64(judged)
	return s
}
