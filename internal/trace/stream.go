package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Streamer POSTs trace lines to an endpoint from a bounded queue. Enqueue
// never blocks: when the queue is full the line is dropped, keeping the
// call path's latency independent of the sink.
type Streamer struct {
	endpoint string
	queue    chan []byte
	client   *http.Client
	done     chan struct{}
	once     sync.Once
}

// NewStreamer starts a background worker posting to endpoint.
func NewStreamer(endpoint string, queueSize int) *Streamer {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &Streamer{
		endpoint: endpoint,
		queue:    make(chan []byte, queueSize),
		client:   &http.Client{Timeout: 5 * time.Second},
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue offers a line to the worker, dropping on back-pressure.
func (s *Streamer) Enqueue(line []byte) {
	select {
	case s.queue <- line:
	default:
	}
}

func (s *Streamer) run() {
	for line := range s.queue {
		s.post(line)
	}
	close(s.done)
}

func (s *Streamer) post(line []byte) {
	resp, err := s.client.Post(s.endpoint, "application/json", bytes.NewReader(line))
	if err != nil {
		slog.Debug("trace stream post failed", "error", err)
		return
	}
	resp.Body.Close()
}

// Close drains remaining queued lines and stops the worker.
func (s *Streamer) Close() {
	s.once.Do(func() {
		close(s.queue)
		<-s.done
	})
}
