package handle

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"paperai/api/internal/gateway"
	"paperai/api/internal/paper"
	"paperai/api/internal/ratelimit"
)

// GeneratePaper handles POST /v1/generate-paper.
func (h *Handle) GeneratePaper(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}
	var sub gateway.Submission
	if err := render.DecodeJSON(r.Body, &sub); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeFailure(w, r, paper.Fail(paper.InvalidRequest, "request body exceeds %d bytes", mbe.Limit))
			return
		}
		writeFailure(w, r, paper.Fail(paper.InvalidRequest, "bad json: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.GenerateTimeout)
	defer cancel()

	out := h.gw.Generate(ctx, ratelimit.ClientKey(r, h.opts.ClientHeader), sub)
	if out.Failure != nil {
		writeFailure(w, r, out.Failure)
		return
	}
	if len(out.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.Raw)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out.Paper)
}

// StatusFor maps a failure kind onto an HTTP status.
func StatusFor(kind paper.ErrorKind) int {
	switch kind {
	case paper.RateLimited:
		return http.StatusTooManyRequests
	case paper.InvalidRequest:
		return http.StatusBadRequest
	case paper.BackendError, paper.MalformedResponse, paper.SchemaViolation:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, r *http.Request, f *paper.Failure) {
	if f.Kind == paper.RateLimited {
		secs := int(math.Ceil(f.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 60
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	render.Status(r, StatusFor(f.Kind))
	render.JSON(w, r, f)
}
