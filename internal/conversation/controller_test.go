// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/model"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// pipeSource delivers frames pushed by the test. Closing frames ends the
// stream without a terminal frame.
type pipeSource struct {
	frames chan string
	done   chan struct{}
	once   sync.Once
}

func newPipeSource() *pipeSource {
	return &pipeSource{frames: make(chan string, 16), done: make(chan struct{})}
}

func (p *pipeSource) Next() (string, error) {
	select {
	case f, ok := <-p.frames:
		if !ok {
			return "", invoke.ErrUnexpectedEOF
		}
		return f, nil
	case <-p.done:
		return "", errors.New("source closed")
	}
}

func (p *pipeSource) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

type scriptedOpener struct {
	mu      sync.Mutex
	sources []*pipeSource
	errs    []error
	calls   int
	queries []string
	history [][]invoke.WireTurn
}

func (o *scriptedOpener) Open(ctx context.Context, history []invoke.WireTurn, query string) (invoke.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.calls
	o.calls++
	o.queries = append(o.queries, query)
	o.history = append(o.history, history)
	if i < len(o.errs) && o.errs[i] != nil {
		return nil, o.errs[i]
	}
	return o.sources[i], nil
}

func (o *scriptedOpener) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) listen(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) kinds() []UpdateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UpdateKind, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Kind
	}
	return out
}

func (r *recorder) last() Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

func wait(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func feed(src *pipeSource, frames ...string) {
	for _, f := range frames {
		src.frames <- f
	}
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_BlankQuery(t *testing.T) {
	opener := &scriptedOpener{}
	c := New(opener)

	for _, q := range []string{"", "   ", "\n\t "} {
		err := c.Submit(context.Background(), q)
		assert.ErrorIs(t, err, ErrBlankQuery, "query %q", q)
	}

	assert.Empty(t, c.Turns())
	assert.Equal(t, 0, opener.Calls())
	assert.False(t, c.Awaiting())
}

func TestSubmit_StreamsAndCommits(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	require.NoError(t, c.Submit(context.Background(), "hi"))
	assert.True(t, c.Awaiting())

	feed(src, "Hel", "lo ", "[DONE]world")
	wait(t, c)

	want := []model.Turn{model.NewUserTurn("hi"), model.NewAssistantTurn("Hello world")}
	assert.Equal(t, want, c.Turns())
	assert.False(t, c.Awaiting())
	assert.Equal(t, "", c.Typing())

	assert.Equal(t, []UpdateKind{UpdateUserTurn, UpdatePartial, UpdatePartial, UpdateFinalized}, rec.kinds())

	rec.mu.Lock()
	partial := rec.updates[2]
	rec.mu.Unlock()
	assert.Equal(t, "Hello ", partial.Text)
	assert.True(t, partial.State.Awaiting)
	assert.Equal(t, "Hello ", partial.State.Typing)
	assert.Len(t, partial.State.Turns, 1, "assistant turn committed before finalize")

	final := rec.last()
	assert.Equal(t, "Hello world", final.Text)
	assert.False(t, final.State.Awaiting)
	assert.Len(t, final.State.Turns, 2)
}

func TestSubmit_QueryStoredVerbatim(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	c := New(opener)

	require.NoError(t, c.Submit(context.Background(), "  spaced  "))
	feed(src, "[DONE]")
	wait(t, c)

	assert.Equal(t, []model.Turn{model.NewUserTurn("  spaced  ")}, c.Turns())
	assert.Equal(t, []string{"  spaced  "}, opener.queries)
}

func TestSubmit_HistoryExcludesNewTurn(t *testing.T) {
	first, second := newPipeSource(), newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{first, second}}
	c := New(opener)

	require.NoError(t, c.Submit(context.Background(), "one"))
	feed(first, "<response>uno</response>", "[DONE]")
	wait(t, c)

	require.NoError(t, c.Submit(context.Background(), "two"))
	feed(second, "[DONE]dos")
	wait(t, c)

	assert.Equal(t, []invoke.WireTurn{}, opener.history[0])
	assert.Equal(t, []invoke.WireTurn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "uno"},
	}, opener.history[1])
	assert.Len(t, c.Turns(), 4)
}

func TestSubmit_WhileActive(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	require.NoError(t, c.Submit(context.Background(), "first"))
	feed(src, "partial")

	err := c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Equal(t, 1, opener.Calls(), "no second connection")

	turns := c.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, model.NewUserTurn("second"), turns[1])

	feed(src, "[DONE]")
	wait(t, c)

	turns = c.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, model.NewAssistantTurn("partial"), turns[2])
}

// slowWriter makes every log call take a while, widening any gap between
// taking a snapshot and handing it to listeners.
type slowWriter struct{}

func (slowWriter) Write(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return len(p), nil
}

func TestSubmit_WhileActiveRacingTerminal(t *testing.T) {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(slowWriter{}),
		zapcore.InfoLevel,
	)
	logger := zap.New(core)

	for i := 0; i < 50; i++ {
		first, second := newPipeSource(), newPipeSource()
		opener := &scriptedOpener{sources: []*pipeSource{first, second}}
		rec := &recorder{}
		c := New(opener, WithLogger(logger), WithListener(rec.listen))

		require.NoError(t, c.Submit(context.Background(), "q1"))
		feed(first, "[DONE]answer")
		if err := c.Submit(context.Background(), "q2"); err == nil {
			feed(second, "[DONE]")
		} else {
			require.ErrorIs(t, err, ErrSessionActive)
		}
		wait(t, c)

		last := rec.last()
		if last.State.Awaiting {
			t.Fatalf("run %d: last update %s has Awaiting=true, controller Awaiting=%v", i, last.Kind, c.Awaiting())
		}
		assert.Equal(t, c.Snapshot(), last.State, "run %d", i)
	}
}

// =============================================================================
// TERMINATION TESTS
// =============================================================================

func TestSubmit_DialFailure(t *testing.T) {
	dialErr := &invoke.TransportError{Type: invoke.ErrTypeConnection, Message: "refused"}
	src := newPipeSource()
	opener := &scriptedOpener{errs: []error{dialErr}, sources: []*pipeSource{nil, src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	require.NoError(t, c.Submit(context.Background(), "hi"))
	wait(t, c)

	last := rec.last()
	assert.Equal(t, UpdateErrored, last.Kind)
	assert.ErrorIs(t, last.Err, dialErr)
	assert.Equal(t, []model.Turn{model.NewUserTurn("hi")}, c.Turns())
	assert.False(t, c.Awaiting())

	// Next query opens a new session
	require.NoError(t, c.Submit(context.Background(), "again"))
	feed(src, "[DONE]ok")
	wait(t, c)
	assert.Equal(t, 2, opener.Calls())
	assert.Len(t, c.Turns(), 3)
}

func TestSubmit_StreamInterrupted(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	require.NoError(t, c.Submit(context.Background(), "hi"))
	feed(src, "Hel")
	close(src.frames)
	wait(t, c)

	assert.Equal(t, []UpdateKind{UpdateUserTurn, UpdatePartial, UpdateErrored}, rec.kinds())
	assert.ErrorIs(t, rec.last().Err, invoke.ErrUnexpectedEOF)
	assert.Equal(t, []model.Turn{model.NewUserTurn("hi")}, c.Turns())
	assert.Equal(t, "", c.Typing())
}

func TestSubmit_ControlCall(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	require.NoError(t, c.Submit(context.Background(), "weather?"))
	feed(src, "fn: lookup_weather")
	wait(t, c)

	last := rec.last()
	assert.Equal(t, UpdateControlCall, last.Kind)
	assert.Equal(t, "lookup_weather", last.Text)
	assert.Equal(t, []model.Turn{model.NewUserTurn("weather?")}, c.Turns())
	assert.False(t, c.Awaiting())
}

func TestSubmit_EmptyFinalNotCommitted(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	require.NoError(t, c.Submit(context.Background(), "hi"))
	feed(src, "<response>", "</response>", "[DONE]")
	wait(t, c)

	assert.Equal(t, UpdateFinalized, rec.last().Kind)
	assert.Equal(t, "", rec.last().Text)
	assert.Len(t, c.Turns(), 1)
}

func TestCancel(t *testing.T) {
	src := newPipeSource()
	opener := &scriptedOpener{sources: []*pipeSource{src}}
	rec := &recorder{}
	c := New(opener, WithListener(rec.listen))

	// No active session: no-op
	c.Cancel()

	require.NoError(t, c.Submit(context.Background(), "hi"))
	feed(src, "Hel")
	require.Eventually(t, func() bool { return c.Typing() == "Hel" }, 5*time.Second, 5*time.Millisecond)

	c.Cancel()
	wait(t, c)

	assert.Equal(t, UpdateErrored, rec.last().Kind)
	assert.ErrorIs(t, rec.last().Err, context.Canceled)
	assert.Len(t, c.Turns(), 1)
}

func TestWait_Timeout(t *testing.T) {
	src := newPipeSource()
	c := New(&scriptedOpener{sources: []*pipeSource{src}})

	require.NoError(t, c.Wait(context.Background()), "idle controller")

	require.NoError(t, c.Submit(context.Background(), "hi"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	c.Cancel()
	wait(t, c)
}

func TestSnapshot_IsCopy(t *testing.T) {
	src := newPipeSource()
	c := New(&scriptedOpener{sources: []*pipeSource{src}})

	require.NoError(t, c.Submit(context.Background(), "hi"))
	snap := c.Snapshot()
	snap.Turns[0].Content = "mutated"

	assert.Equal(t, "hi", c.Turns()[0].Content)
	c.Cancel()
	wait(t, c)
}

// =============================================================================
// END-TO-END OVER SSE
// =============================================================================

func TestController_OverSSE(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RawQuery)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range []string{"Hel", "lo ", "[DONE]world"} {
			fmt.Fprintf(w, "data: %s\n\n", f)
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	dialer := invoke.NewDialer(&invoke.Config{Endpoint: server.URL + "/invoke"}, nil)
	c := New(dialer)

	require.NoError(t, c.Submit(context.Background(), "a + b"))
	wait(t, c)

	assert.Equal(t, []model.Turn{
		model.NewUserTurn("a + b"),
		model.NewAssistantTurn("Hello world"),
	}, c.Turns())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "chat_history=%5B%5D&query=a%20%2B%20b", seen[0])
}
