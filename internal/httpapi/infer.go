package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"localchat/internal/session"
	"localchat/pkg/types"
)

// infer godoc
// @Summary      Stream a completion
// @Description  Streams NDJSON StreamEvents (chunk, error) and always ends with one done event.
// @Tags         inference
// @Accept       json
// @Produce      application/x-ndjson
// @Param        body  body      types.StreamRequest  true  "Prompt and sampling options"
// @Success      200   {object}  types.StreamEvent
// @Failure      400   {object}  types.ErrorResponse
// @Failure      415   {object}  types.ErrorResponse
// @Router       /infer [post]
func (a *api) infer(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if a.Streamer == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "chat transport not configured")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, _ := w.(http.Flusher)

	log := requestLogger(r)
	lvl := requestLogLevel(r)
	writer := io.Writer(w)
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{log: log, prefix: "infer"})
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if inferTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, inferTimeout)
		defer cancelTimeout()
	}

	if lvl >= LevelInfo {
		log.Info().Str("path", r.URL.Path).Str("model", req.Model).Msg("infer start")
	}
	start := time.Now()
	enc := json.NewEncoder(writer)
	var writeErr error
	out, err := session.Run(ctx, a.Streamer, req, func(ev types.StreamEvent) {
		if writeErr != nil {
			return
		}
		if writeErr = enc.Encode(ev); writeErr != nil {
			// Client went away; stop the transport.
			cancel()
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
	dur := time.Since(start)
	streamsTotal.WithLabelValues(string(out)).Inc()
	streamDuration.Observe(dur.Seconds())

	switch {
	case err != nil && lvl >= LevelError:
		log.Warn().Err(err).Str("outcome", string(out)).Dur("dur", dur).Msg("infer end")
	case lvl >= LevelInfo:
		log.Info().Str("outcome", string(out)).Dur("dur", dur).Msg("infer end")
	}
}
