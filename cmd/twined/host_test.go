package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/b97tsk/twine"
)

func TestHostHandler(t *testing.T) {
	t.Run("MaxConnections", func(t *testing.T) {
		h, _ := newTestHub()

		s := newHost(defaultFile(), slog.New(slog.DiscardHandler), nil, h)
		handle := s.handler(&Service{Kind: "echo", MaxConnections: 1})

		first := connect(h, handle)
		second := connect(h, handle)

		second.Receive([]byte("queued"))
		first.Receive([]byte("served"))

		if string(first.Bytes()) != "served" || len(second.Writes()) != 0 {
			t.Fatal("only the first connection should be served")
		}
		if s.active.Count() != 2 {
			t.Fatalf("want 2 active connections, got %d", s.active.Count())
		}

		first.ReportDisconnect(nil)

		if string(second.Bytes()) != "queued" {
			t.Fatalf("the second connection should be served once the first ends, got %q", second.Bytes())
		}
		if s.active.Count() != 1 {
			t.Fatalf("want 1 active connection, got %d", s.active.Count())
		}
	})
	t.Run("IdleIsNotAFailure", func(t *testing.T) {
		var buf bytes.Buffer

		h, c := newTestHub(twine.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		s := newHost(defaultFile(), slog.New(slog.DiscardHandler), nil, h)
		tr := connect(h, s.handler(&Service{Kind: "discard", IdleTimeout: Duration{time.Second}}))

		c.Advance(time.Second)

		if !tr.Disconnecting || h.Len() != 0 || s.active.Count() != 0 {
			t.Fatal("an idle connection should be closed")
		}
		if buf.Len() != 0 {
			t.Fatalf("an idle connection should not be logged as a failure: %q", buf.String())
		}
	})
}
