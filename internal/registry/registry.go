// registry.go — the subscriber registry: the only mutator of session
// state in this process. Admission, broadcast fan-out, heartbeats, and
// resume replay all funnel through Registry's single mutex, so one
// owning struct serializes its own state across many independent
// subscriber sessions.
package registry

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/liqerrors"
	"github.com/liquidterminal/liq-stream/internal/metrics"
)

// Config holds the admission and resume parameters.
type Config struct {
	MaxTotal        int
	MaxPerIP        int
	MissedDataLimit int
}

// DefaultConfig returns the nominal values for a production deployment.
func DefaultConfig() Config {
	return Config{MaxTotal: 1000, MaxPerIP: 3, MissedDataLimit: 100}
}

// Registry is the per-process set of attached sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	perIP    map[string]int
	cfg      Config
}

// New builds an empty Registry.
func New(cfg Config) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		perIP:    make(map[string]int),
		cfg:      cfg,
	}
}

// RecentSource supplies the bounded recent-events window resume replay
// reads from — either the cache's "recent/1h" blob or a direct upstream
// call, at the caller's discretion.
type RecentSource func() []events.Event

// Attach registers a new session. writable reports whether the caller's
// underlying writer can currently flush headers; recent supplies the
// window to replay from if resumeFromID > 0.
func (r *Registry) Attach(ip string, filter Filter, resumeFromID int64, writable bool, recent RecentSource) (*Session, error) {
	if !writable {
		metrics.AdmissionDeniedTotal.WithLabelValues("not_writable").Inc()
		return nil, liqerrors.AdmissionDenied("writer is not currently writable")
	}

	r.mu.Lock()
	if len(r.sessions) >= r.cfg.MaxTotal {
		r.mu.Unlock()
		metrics.AdmissionDeniedTotal.WithLabelValues("total_limit").Inc()
		return nil, liqerrors.AdmissionDenied("global connection limit reached")
	}
	if r.perIP[ip] >= r.cfg.MaxPerIP {
		r.mu.Unlock()
		metrics.AdmissionDeniedTotal.WithLabelValues("per_ip_limit").Inc()
		return nil, liqerrors.AdmissionDenied("per-ip connection limit reached")
	}

	// The replay below runs synchronously, before the caller's write loop
	// starts draining Frames(), so the channel must hold the connected
	// frame, the full replay backlog, and a trailing truncated frame
	// without blocking or silently dropping any of them.
	bufferSize := r.cfg.MissedDataLimit + 2
	s := newSession(uuid.NewString(), ip, filter, resumeFromID, bufferSize)
	r.sessions[s.ID] = s
	r.perIP[ip]++
	metrics.SessionsAttached.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	connectedData, _ := json.Marshal(map[string]any{"sessionId": s.ID})
	s.enqueue(Frame{Event: FrameConnected, Data: connectedData})

	if resumeFromID > 0 && recent != nil {
		missedWindow := recent()
		r.mu.Lock()
		r.resumeReplay(s, missedWindow)
		r.mu.Unlock()
	}

	return s, nil
}

// resumeReplay replays missed events to a just-attached session: events
// with tid > resumeFromID, ascending, filtered, bounded by
// MissedDataLimit. Caller must hold r.mu.
func (r *Registry) resumeReplay(s *Session, window []events.Event) {
	var missed []events.Event
	for _, e := range window {
		if e.TID > s.LastEventID {
			missed = append(missed, e)
		}
	}
	sort.Slice(missed, func(i, j int) bool { return missed[i].TID < missed[j].TID })

	truncated := len(missed) > r.cfg.MissedDataLimit
	if truncated {
		missed = missed[len(missed)-r.cfg.MissedDataLimit:]
	}

	for _, e := range missed {
		if !s.Filter.Match(e) {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if !s.enqueue(Frame{ID: itoa(e.TID), Event: FrameLiquidation, Data: data}) {
			return
		}
		s.LastEventID = e.TID
	}

	if truncated {
		data, _ := json.Marshal(map[string]any{"limit": r.cfg.MissedDataLimit})
		s.enqueue(Frame{Event: FrameTruncated, Data: data})
	}
}

// Detach removes a session by id. Idempotent.
func (r *Registry) Detach(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(sessionID)
}

func (r *Registry) detachLocked(sessionID string) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	r.perIP[s.IP]--
	if r.perIP[s.IP] <= 0 {
		delete(r.perIP, s.IP)
	}
	s.close()
	metrics.SessionsAttached.Set(float64(len(r.sessions)))
}

// BroadcastLocal fans evs out to every attached session whose filter
// matches, in ascending tid order. Sessions whose buffer is full (slow
// consumers) are detached.
func (r *Registry) BroadcastLocal(evs []events.Event) {
	sorted := append([]events.Event(nil), evs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TID < sorted[j].TID })

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessionsSnapshotLocked() {
		for _, e := range sorted {
			if e.TID <= s.LastEventID || !s.Filter.Match(e) {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if !s.enqueue(Frame{ID: itoa(e.TID), Event: FrameLiquidation, Data: data}) {
				metrics.SessionsDroppedTotal.WithLabelValues("slow_consumer").Inc()
				r.detachLocked(s.ID)
				break
			}
			s.LastEventID = e.TID
		}
	}
}

// HeartbeatTick writes a heartbeat control frame to every session;
// sessions whose buffer is full are detached.
func (r *Registry) HeartbeatTick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, _ := json.Marshal(map[string]any{"ts": time.Now().Unix()})
	for _, s := range r.sessionsSnapshotLocked() {
		if !s.enqueue(Frame{Event: FrameHeartbeat, Data: data}) {
			metrics.SessionsDroppedTotal.WithLabelValues("slow_consumer").Inc()
			r.detachLocked(s.ID)
		}
	}
}

func (r *Registry) sessionsSnapshotLocked() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Stats reports the counts exposed by GET /liquidations/stream/stats.
func (r *Registry) Stats() (totalConnections int, uniqueIPs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.perIP)
}

// Shutdown closes every session with a terminating error frame, then
// clears the registry. Call once during process shutdown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, _ := json.Marshal(map[string]any{"reason": "server shutting down"})
	for id, s := range r.sessions {
		s.enqueue(Frame{Event: FrameError, Data: data})
		s.close()
		delete(r.sessions, id)
		metrics.SessionsDroppedTotal.WithLabelValues("shutdown").Inc()
	}
	r.perIP = make(map[string]int)
	metrics.SessionsAttached.Set(0)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
