// stream.go — the live push channel (GET /liquidations/stream and
// /liquidations/stream/stats): wraps a http.ResponseWriter as a
// flush-on-write SSE stream using id:/event:/data: records. The session's
// buffered channel plus a write-timeout here are what make a slow client
// detectable without blocking the broadcaster.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/logging"
	"github.com/liquidterminal/liq-stream/internal/registry"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
	"github.com/liquidterminal/liq-stream/internal/upstreamclient"
)

// writeTimeout bounds a single frame write to the client: a slow writer
// must be detected and the session dropped rather than blocking the
// broadcaster.
const writeTimeout = time.Second

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logging.WithComponent("httpapi")

	flusher, writable := w.(http.Flusher)

	q := r.URL.Query()
	filter := registry.Filter{
		Coin: q.Get("coin"),
		User: q.Get("user"),
	}
	if v := q.Get("min_amount_dollars"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinNotional = f
		}
	}

	resumeFromID := int64(0)
	if hdr := r.Header.Get("Last-Event-ID"); hdr != "" {
		if n, err := strconv.ParseInt(hdr, 10, 64); err == nil {
			resumeFromID = n
		}
	} else if v := q.Get("last_event_id"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resumeFromID = n
		}
	}

	sess, err := s.Registry.Attach(clientIP(r), filter, resumeFromID, writable, s.recentWindow(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable intermediary buffering (nginx et al)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.Registry.Detach(sess.ID)
			return
		case frame, ok := <-sess.Frames():
			if !ok {
				return
			}
			if err := writeFrame(w, flusher, frame); err != nil {
				log.Debug().Err(err).Str("session", sess.ID).Msg("dropping slow or disconnected stream session")
				s.Registry.Detach(sess.ID)
				return
			}
		}
	}
}

// writeFrame renders one SSE record and flushes it, bounded by
// writeTimeout so a stalled client cannot back up the broadcaster.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, f registry.Frame) error {
	done := make(chan error, 1)
	go func() {
		var b []byte
		if f.ID != "" {
			b = append(b, "id: "+f.ID+"\n"...)
		}
		b = append(b, "event: "+string(f.Event)+"\n"...)
		b = append(b, "data: "...)
		b = append(b, f.Data...)
		b = append(b, "\n\n"...)
		_, werr := w.Write(b)
		if werr == nil {
			flusher.Flush()
		}
		done <- werr
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(writeTimeout):
		return fmt.Errorf("write timeout after %s", writeTimeout)
	}
}

// recentWindow builds the resume-replay source: the cache's
// recent blob if it matches the refresh loop's configured hours/limit,
// else a direct bounded upstream call.
func (s *Server) recentWindow(r *http.Request) registry.RecentSource {
	return func() []events.Event {
		ctx := r.Context()
		if raw, ok, err := s.Cache.Get(ctx, snapshotcache.KeyRecent(s.RecentHours, s.RecentLimit)); err == nil && ok {
			var evs []events.Event
			if json.Unmarshal(raw, &evs) == nil {
				return evs
			}
		}
		page, err := s.Upstream.FetchRecentPage(ctx, s.RecentHours, "", s.RecentLimit, upstreamclient.Desc)
		if err != nil {
			return nil
		}
		return page.Events
	}
}

func (s *Server) handleStreamStats(w http.ResponseWriter, r *http.Request) {
	total, uniqueIPs := s.Registry.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"totalConnections": total,
		"uniqueIps":        uniqueIPs,
	})
}
