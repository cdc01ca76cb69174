package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/docversion"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu         sync.Mutex
	messages   []message
	flushes    int
	closed     bool
	publishErr error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.messages = append(c.messages, message{subject: subject, data: data})
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func TestEntryDone_PublishesDocumentEvent(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "texbuilder.results")
	run := batch.Run{ID: "run-1"}

	p.EntryDone(t.Context(), run, batch.Entry{
		Path:    "a.tex",
		Version: docversion.V2,
		Results: []compile.Result{{Variant: compile.Student, Success: true}},
	})

	require.Len(t, conn.messages, 1)
	assert.Equal(t, "texbuilder.results.document", conn.messages[0].subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &got))
	assert.Equal(t, "run-1", got["run_id"])
	entry := got["entry"].(map[string]any)
	assert.Equal(t, "a.tex", entry["path"])
	assert.Equal(t, "V2", entry["version"])
}

func TestRunDone_PublishesSummaryAndFlushes(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "tb")
	run := batch.Run{ID: "run-2", Variants: []compile.Variant{compile.Student, compile.Teacher}, Mode: compile.Deep}

	p.RunDone(t.Context(), run, []batch.Entry{
		{Path: "a.tex"},
		{Path: "b.tex", Err: errors.New("broken")},
	})

	require.Len(t, conn.messages, 1)
	assert.Equal(t, "tb.run", conn.messages[0].subject)
	assert.Equal(t, 1, conn.flushes)

	var evt RunEvent
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &evt))
	assert.Equal(t, 2, evt.Total)
	assert.Equal(t, 1, evt.Failed)
	assert.Equal(t, "deep", evt.Mode)
	assert.Equal(t, []string{"student", "teacher"}, evt.Variants)
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	conn := &fakeConn{publishErr: errors.New("disconnected")}
	p := NewPublisher(conn, "tb")

	assert.NotPanics(t, func() {
		p.EntryDone(t.Context(), batch.Run{ID: "r"}, batch.Entry{Path: "a.tex"})
		p.RunDone(t.Context(), batch.Run{ID: "r"}, nil)
	})
	assert.Empty(t, conn.messages)
	assert.Zero(t, conn.flushes)
}

func TestConnect_DisabledWithoutURL(t *testing.T) {
	p, err := Connect(config.EventsConfig{Subject: "tb"})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	NewPublisher(conn, "tb").Close()
	assert.True(t, conn.closed)
}
