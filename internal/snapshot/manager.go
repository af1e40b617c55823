package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

// Event types sent to lifecycle listeners.
const (
	EventSessionStarted   = "session_started"
	EventSnapshotComplete = "snapshot_complete"
	EventSessionEnded     = "session_ended"
)

// Event is one lifecycle notification.
type Event struct {
	Type    string    `json:"type"`
	Partial bool      `json:"partial,omitempty"`
	Windows int       `json:"windows,omitempty"`
	Time    time.Time `json:"time"`
}

// SourcesFunc builds the capture sources for one session. Sessions do
// not share sources: the frame extents cache inside the window
// capturer holds for one interaction only.
type SourcesFunc func() Sources

// Manager owns the active session. At most one interaction is in
// flight; starting a new session discards the previous one.
type Manager struct {
	sources SourcesFunc
	opts    Options

	mu        sync.RWMutex
	current   *Session
	listeners []chan Event
}

// NewManager creates a manager building per-session sources through
// the given func.
func NewManager(sources SourcesFunc, opts Options) *Manager {
	return &Manager{sources: sources, opts: opts}
}

// StartSession freezes a new snapshot, ending any session still
// active first.
func (m *Manager) StartSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.current != nil {
		logger.WithComponent("snapshot").Debug().Msg("Discarding previous session")
		m.current.End()
		m.current = nil
	}

	s, err := Begin(ctx, m.sources(), m.opts)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.current = s
	m.mu.Unlock()

	m.emit(Event{Type: EventSessionStarted, Time: time.Now()})
	go m.watchCompletion(s)
	return s, nil
}

func (m *Manager) watchCompletion(s *Session) {
	snap, err := s.Snapshot(context.Background())
	if err != nil {
		return
	}
	m.emit(Event{
		Type:    EventSnapshotComplete,
		Partial: snap.Partial,
		Windows: len(snap.Windows),
		Time:    time.Now(),
	})
}

// Current returns the active session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != nil
}

// EndSession discards the active session. Ending twice, or with no
// session at all, is a no-op.
func (m *Manager) EndSession() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s != nil {
		s.End()
		m.emit(Event{Type: EventSessionEnded, Time: time.Now()})
	}
}

// Subscribe adds a listener for lifecycle events.
func (m *Manager) Subscribe() chan Event {
	ch := make(chan Event, 10)
	m.mu.Lock()
	m.listeners = append(m.listeners, ch)
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (m *Manager) Unsubscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (m *Manager) emit(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, listener := range m.listeners {
		select {
		case listener <- e:
		default:
			// Skip slow consumers rather than stall capture.
		}
	}
}

// FromDisplay wires the standard capture sources over one display
// connection. Use it as the Manager's SourcesFunc:
//
//	mgr := snapshot.NewManager(func() snapshot.Sources {
//		return snapshot.FromDisplay(d)
//	}, opts)
func FromDisplay(d *xconn.Display) Sources {
	extents := xwin.NewExtentsCache(d, d.Atoms)
	return Sources{
		Desktop: capture.NewDesktopCapturer(d),
		Windows: capture.NewWindowCapturer(d, extents),
		Lister:  xwin.NewEnumerator(d),
		Cursor:  capture.NewCursorCapturer(d),
	}
}
