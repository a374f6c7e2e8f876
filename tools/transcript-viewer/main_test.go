package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDecodeUtterance(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"utterance", `{"eventType":"AsrTextSignalEvent","signalId":"s1","text":"hi","segments":[{"container_id":"c","start":0,"stop":10}]}`, true},
		{"other type", `{"eventType":"VadEvent"}`, false},
		{"garbage", `{`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := decodeUtterance([]byte(tt.value))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (ev.SignalID != "s1" || len(ev.Segments) != 1) {
				t.Errorf("unexpected event %+v", ev)
			}
		})
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) UtteranceEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev UtteranceEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestHub_BroadcastAndReplay(t *testing.T) {
	hub := newHub(2)
	srv := httptest.NewServer(wsHandler(hub))
	defer srv.Close()

	hub.publish(UtteranceEvent{SignalID: "s1", Text: "one"})
	hub.publish(UtteranceEvent{SignalID: "s2", Text: "two"})
	hub.publish(UtteranceEvent{SignalID: "s3", Text: "three"})

	conn := dial(t, srv.URL)
	defer conn.Close()

	for _, want := range []string{"two", "three"} {
		if got := read(t, conn).Text; got != want {
			t.Errorf("replayed %q, want %q", got, want)
		}
	}

	hub.publish(UtteranceEvent{SignalID: "s4", Text: "four"})
	if got := read(t, conn).Text; got != "four" {
		t.Errorf("expected live 'four', got %q", got)
	}
	if hub.count() != 1 {
		t.Errorf("expected 1 client, got %d", hub.count())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("truncate long = %q", got)
	}
}
