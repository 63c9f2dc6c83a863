// Package gateway runs one generation request from admission to a
// validated question paper or a typed failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"paperai/api/internal/llm"
	"paperai/api/internal/paper"
	"paperai/api/internal/prompt"
	"paperai/api/internal/ratelimit"
	"paperai/api/internal/store"
	"paperai/api/internal/validate"
)

const rateLimitedMessage = "Too many requests. Please wait a minute before trying again."

// Recorder persists admitted generations. Errors are logged, never returned
// to the caller.
type Recorder interface {
	Insert(ctx context.Context, rec *store.Record) error
}

type Gateway struct {
	limiter   ratelimit.Limiter
	engines   *llm.Engines
	validator *validate.Validator
	recorder  Recorder
	log       zerolog.Logger
	maxFiles  int
	now       func() time.Time
}

type Option func(*Gateway)

func WithRecorder(r Recorder) Option { return func(g *Gateway) { g.recorder = r } }

func WithLogger(l zerolog.Logger) Option { return func(g *Gateway) { g.log = l } }

// WithMaxFiles caps the number of files per submission; 0 means no cap.
func WithMaxFiles(n int) Option { return func(g *Gateway) { g.maxFiles = n } }

func New(limiter ratelimit.Limiter, engines *llm.Engines, v *validate.Validator, opts ...Option) *Gateway {
	if limiter == nil {
		limiter = ratelimit.NoopLimiter
	}
	g := &Gateway{
		limiter:   limiter,
		engines:   engines,
		validator: v,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate never returns a Go error: every failure comes back as
// Outcome.Failure with one of the paper.ErrorKind values.
func (g *Gateway) Generate(ctx context.Context, clientKey string, sub Submission) paper.Outcome {
	if clientKey == "" {
		clientKey = ratelimit.AnonymousKey
	}
	log := g.log.With().Str("client", clientKey).Logger()

	dec, err := g.limiter.Admit(ctx, clientKey)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter unavailable, rejecting")
		return paper.Failed(&paper.Failure{Kind: paper.RateLimited, Message: rateLimitedMessage, RetryAfter: 10 * time.Second})
	}
	if !dec.Allowed {
		log.Info().Dur("retry_after", dec.RetryAfter).Msg("rate limited")
		return paper.Failed(&paper.Failure{Kind: paper.RateLimited, Message: rateLimitedMessage, RetryAfter: dec.RetryAfter})
	}

	req, fail := decode(sub, g.maxFiles)
	if fail != nil {
		log.Info().Str("kind", string(fail.Kind)).Msg(fail.Message)
		return paper.Failed(fail)
	}
	eng, err := g.engines.GetEngine(sub.LLMName)
	if err != nil {
		return paper.Failed(paper.Fail(paper.InvalidRequest, "%v", err))
	}

	start := g.now()
	raw, err := invoke(ctx, eng, prompt.Build(req))
	var out paper.Outcome
	if err != nil {
		out = paper.Failed(paper.Fail(paper.BackendError, "%s: %v", eng.Name(), err))
	} else if p, doc, perr := g.validator.ParseRaw(raw, req.Config); perr != nil {
		var f *paper.Failure
		if !errors.As(perr, &f) {
			f = paper.Fail(paper.SchemaViolation, "%v", perr)
		}
		out = paper.Failed(f)
	} else {
		out = paper.SuccessJSON(p, doc)
	}
	latency := g.now().Sub(start)

	ev := log.Info()
	if out.Failure != nil {
		ev = log.Warn().Str("kind", string(out.Failure.Kind)).Str("reason", out.Failure.Message)
	}
	ev.Str("engine", eng.Name()).Str("model", eng.GetModel()).
		Int("files", len(req.Files)).Dur("latency", latency).Msg("generation finished")

	g.record(ctx, clientKey, eng, req, out, latency)
	return out
}

// invoke makes the single backend call; a panicking engine is reported as an error.
func invoke(ctx context.Context, eng llm.Engine, req llm.Request) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return eng.Generate(ctx, req)
}

func (g *Gateway) record(ctx context.Context, clientKey string, eng llm.Engine, req paper.GenerationRequest, out paper.Outcome, latency time.Duration) {
	if g.recorder == nil {
		return
	}
	rec := &store.Record{
		ClientKey:  clientKey,
		Engine:     eng.Name(),
		Model:      eng.GetModel(),
		Config:     req.Config,
		FileCount:  len(req.Files),
		SourceHash: store.SourceHash(req.Files),
		Paper:      out.Paper,
		LatencyMs:  latency.Milliseconds(),
	}
	if out.Failure != nil {
		rec.Kind = out.Failure.Kind
		rec.Message = out.Failure.Message
	}
	// the caller may already be gone; the audit row is still written
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.recorder.Insert(rctx, rec); err != nil {
		g.log.Error().Err(err).Msg("record generation")
	}
}
