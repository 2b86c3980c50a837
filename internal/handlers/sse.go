package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/commune/backend/internal/sse"
)

// StreamConfig sets the keep-alive and buffering of event streams.
type StreamConfig struct {
	Heartbeat  time.Duration
	BufferSize int
}

func (c StreamConfig) options(channel string) sse.Options {
	return sse.Options{
		Channel:    channel,
		Heartbeat:  c.Heartbeat,
		BufferSize: c.BufferSize,
	}
}

// serveStream opens an event stream, lets attach queue its opening records
// and subscribe, then writes until the client disconnects or delivery to the
// stream fails. attach must register its unsubscribe with stream.OnClose.
func serveStream(w http.ResponseWriter, r *http.Request, opts sse.Options, attach func(stream *sse.Stream) error) {
	stream, err := sse.Open(w, opts)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "streaming not supported", err)
		return
	}

	if err := attach(stream); err != nil {
		slog.WarnContext(r.Context(), "stream: subscribe failed",
			slog.String("channel", opts.Channel),
			slog.Any("error", err),
		)
		stream.Close()
		return
	}

	stream.Run(r.Context())
}
