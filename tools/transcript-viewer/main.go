// Transcript Viewer - Real-time utterance display
// Consumes merged utterances from Kafka and pushes them via WebSocket to the browser
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

const utteranceEventType = "AsrTextSignalEvent"

// SegmentRef is one audio interval that contributed to an utterance.
type SegmentRef struct {
	ContainerID string `json:"container_id"`
	Start       uint   `json:"start"`
	Stop        uint   `json:"stop"`
}

// UtteranceEvent mirrors the merged utterance published by the ASR service.
type UtteranceEvent struct {
	EventType  string       `json:"eventType"`
	SignalID   string       `json:"signalId"`
	ScenarioID string       `json:"scenarioId"`
	Modality   string       `json:"modality"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Segments   []SegmentRef `json:"segments"`
	Timestamp  int64        `json:"timestamp"`
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		c := hub.add(conn)

		// Read until the browser goes away
		go func() {
			defer hub.remove(c)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// decodeUtterance parses a Kafka message value. Other event types are
// skipped.
func decodeUtterance(value []byte) (UtteranceEvent, bool) {
	var ev UtteranceEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		log.Printf("JSON unmarshal error: %v", err)
		return ev, false
	}
	return ev, ev.EventType == utteranceEventType
}

func consume(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Seek failed, reading from the start: %v", err)
	}
	log.Printf("Consuming %s partition 0 (last %s)", topic, since)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		ev, ok := decodeUtterance(msg.Value)
		if !ok {
			continue
		}
		log.Printf("Utterance %s [%s, %d segments]: %s",
			ev.SignalID, ev.ScenarioID, len(ev.Segments), truncate(ev.Text, 60))
		hub.publish(ev)
	}
}

func main() {
	addr := flag.String("addr", ":8081", "HTTP listen address")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "asr", "Merged utterance topic")
	since := flag.Duration("since", time.Hour, "Replay utterances newer than this on start")
	keep := flag.Int("keep", 50, "Recent utterances sent to new clients")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub(*keep)
	go consume(ctx, hub, strings.Split(*brokers, ","), *topic, *since)

	staticFS, _ := fs.Sub(staticFiles, "static")
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Transcript Viewer on http://localhost%s (brokers %s, topic %s)", *addr, *brokers, *topic)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
