package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"localchat/pkg/types"
)

// readBufSize is the size of each body read handed to the decoder.
const readBufSize = 4096

// ErrEmptyPrompt is returned for requests without prompt text.
var ErrEmptyPrompt = errors.New("prompt is required")

// Sink receives stream events in production order.
type Sink func(types.StreamEvent)

// Outcome says how a stream ended.
type Outcome string

const (
	// OutcomeDone: Ollama sent done=true and a done event was emitted.
	OutcomeDone Outcome = "done"
	// OutcomeError: an error event was emitted.
	OutcomeError Outcome = "error"
	// OutcomeCancelled: the caller's context was canceled; nothing terminal was emitted.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeEOF: the body ended without a done marker.
	OutcomeEOF Outcome = "eof"
)

// Stream runs one chat request against Ollama and reports events to sink.
// Canceling ctx aborts the in-flight read; no chunk is emitted once the
// cancellation is observed. The returned error is non-nil only for
// OutcomeError, and the matching error event has already been emitted.
func (c *Client) Stream(ctx context.Context, req types.StreamRequest, sink Sink) (Outcome, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		sink(types.Failure(ErrEmptyPrompt.Error()))
		return OutcomeError, ErrEmptyPrompt
	}
	st := c.loadSettings(ctx)
	if ctx.Err() != nil {
		return OutcomeCancelled, nil
	}
	body, err := json.Marshal(chatRequest{
		Model:    c.ResolveModel(req.Model, st.Model),
		Stream:   true,
		Messages: buildMessages(req, c.systemPrompt),
		Options:  buildOptions(req, c.temperature),
	})
	if err != nil {
		sink(types.Failure("encode request: " + err.Error()))
		return OutcomeError, err
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, c.streamTimeout)
	defer cancelTimeout()
	readCtx, cancelRead := context.WithCancel(timeoutCtx)
	defer cancelRead()

	httpReq, err := http.NewRequestWithContext(readCtx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		sink(types.Failure(err.Error()))
		return OutcomeError, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	c.setOrigin(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.abort(ctx, timeoutCtx, sink, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := readHTTPError(resp)
		msg := "Ollama: " + te.Message
		if te.Status == http.StatusForbidden {
			msg += "\n" + originHint(c.origin)
		}
		c.log.Warn().Int("status", te.Status).Str("error", te.Message).Msg("chat request rejected")
		sink(types.Failure(msg))
		return OutcomeError, te
	}

	ls := lineStream{c: c, ctx: ctx, sink: sink, debug: st.Debug}
	var dec LineDecoder
	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			return OutcomeCancelled, nil
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			_, _ = dec.Write(buf[:n])
			for {
				line, ok := dec.Next()
				if !ok {
					break
				}
				if out, stop, err := ls.handle(line); stop {
					dec.Reset()
					if out == OutcomeDone {
						// Ollama may keep the socket open after done; stop reading now.
						cancelRead()
					}
					return out, err
				}
			}
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) {
			if tail, ok := dec.Flush(); ok {
				if out, stop, err := ls.handle(tail); stop {
					return out, err
				}
			}
			return OutcomeEOF, nil
		}
		return c.abort(ctx, timeoutCtx, sink, rerr)
	}
}

// abort classifies a failed request or read: caller cancellation is quiet,
// everything else becomes one error event.
func (c *Client) abort(ctx, timeoutCtx context.Context, sink Sink, cause error) (Outcome, error) {
	if ctx.Err() != nil {
		return OutcomeCancelled, nil
	}
	te := &TransportError{Message: cause.Error()}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		te.Message = fmt.Sprintf("stream timed out after %s", c.streamTimeout)
	}
	c.log.Warn().Err(cause).Msg("chat stream failed")
	sink(types.Failure(te.Error()))
	return OutcomeError, te
}

// lineStream applies the record rules to each decoded line.
type lineStream struct {
	c     *Client
	ctx   context.Context
	sink  Sink
	debug bool
}

// handle processes one line; stop is true once the stream must end.
// Lines still buffered when ctx is cancelled end the stream quietly.
func (ls *lineStream) handle(line string) (Outcome, bool, error) {
	if ls.ctx.Err() != nil {
		return OutcomeCancelled, true, nil
	}
	if ls.debug {
		ls.c.log.Info().Str("line", line).Msg("stream line")
	}
	rec, err := ParseRecord(line)
	if err != nil {
		ls.c.log.Debug().Str("line", truncate(line, 200)).Msg("skipping non-JSON line")
		return "", false, nil
	}
	if !IsValidRecord(rec) {
		ls.c.log.Debug().Str("line", truncate(line, 200)).Msg("skipping unexpected record")
		return "", false, nil
	}
	if msg, ok := ExtractError(rec); ok {
		ls.sink(types.Failure(msg))
		return OutcomeError, true, &TransportError{Message: msg}
	}
	if text := ExtractContent(rec); text != "" {
		ls.sink(types.Chunk(text))
	}
	if IsDone(rec) {
		ls.sink(types.Done())
		return OutcomeDone, true, nil
	}
	return "", false, nil
}

// readHTTPError extracts a readable message from a non-2xx response.
func readHTTPError(resp *http.Response) *TransportError {
	te := &TransportError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(b) == 0 {
		return te
	}
	raw := strings.TrimSpace(string(b))
	if gjson.ValidBytes(b) {
		j := gjson.ParseBytes(b)
		for _, key := range []string{"error", "message"} {
			if v := j.Get(key); v.Exists() && v.String() != "" {
				te.Message = v.String()
				return te
			}
		}
		// Status text wins over the raw body of a JSON object without
		// error or message keys.
		if te.Message == "" {
			te.Message = truncate(raw, maxErrorText)
		}
		return te
	}
	if raw != "" {
		te.Message = truncate(raw, maxErrorText)
	}
	return te
}
