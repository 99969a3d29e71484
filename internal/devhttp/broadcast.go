// Package devhttp implements DevState and the dev HTTP/SSE app: the
// BuildGate/HtmlInject middleware stack, the static file route, and the
// live-reload event stream browsers subscribe to.
package devhttp

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lbliii/bengal-sub007/internal/model"
)

// clientManager is the teacher's clientManager (wave/internal/devserver),
// transport swapped from a *websocket.Conn to a flushable
// http.ResponseWriter writing SSE frames instead of JSON over a socket.
type clientManager struct {
	clients    map[*sseClient]bool
	register   chan *sseClient
	unregister chan *sseClient
	broadcast  chan model.ReloadDecision
	done       chan struct{}
	count      atomic.Int32
}

type sseClient struct {
	id     string
	notify chan model.ReloadDecision
}

func newClientManager() *clientManager {
	return &clientManager{
		clients:    make(map[*sseClient]bool),
		register:   make(chan *sseClient, 16),
		unregister: make(chan *sseClient, 16),
		broadcast:  make(chan model.ReloadDecision),
		done:       make(chan struct{}),
	}
}

// start runs the manager loop until ctx is cancelled, draining channels
// afterward so in-flight handlers never block on a dead manager.
func (m *clientManager) start(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			for c := range m.clients {
				close(c.notify)
			}
			m.drainChannels()
			return

		case c := <-m.register:
			m.clients[c] = true
			m.count.Add(1)

		case c := <-m.unregister:
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				close(c.notify)
				m.count.Add(-1)
			}

		case msg := <-m.broadcast:
			for c := range m.clients {
				select {
				case c.notify <- msg:
				default:
					// Client isn't draining fast enough; drop rather than block
					// the whole broadcast on one slow reader.
				}
			}
		}
	}
}

func (m *clientManager) drainChannels() {
	for {
		select {
		case <-m.register:
		case <-m.unregister:
		case <-m.broadcast:
		default:
			return
		}
	}
}

func (m *clientManager) wait() {
	<-m.done
}

func (m *clientManager) clientCount() int {
	return int(m.count.Load())
}

// DevState is the shared mutable state BuildTrigger drives and the HTTP app
// reads: whether a build is currently running (for BuildGate) and the SSE
// client pool (for live reload).
type DevState struct {
	mu               sync.Mutex
	buildInProgress  bool
	manager          *clientManager
	managerCtx       context.Context
	managerCancel    context.CancelFunc
	keepAliveSeconds int

	metrics    *Metrics
	metricsReg *prometheus.Registry
}

// NewDevState constructs a DevState and starts its client-manager loop. Call
// Close to stop it.
func NewDevState() *DevState {
	ctx, cancel := context.WithCancel(context.Background())
	metrics, reg := NewMetrics()
	s := &DevState{
		manager:          newClientManager(),
		managerCtx:       ctx,
		managerCancel:    cancel,
		keepAliveSeconds: 15,
		metrics:          metrics,
		metricsReg:       reg,
	}
	go s.manager.start(ctx)
	return s
}

// SetBuildInProgress implements trigger.Broadcaster.
func (s *DevState) SetBuildInProgress(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildInProgress = v
}

func (s *DevState) BuildInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildInProgress
}

// RecordBuild implements trigger.Broadcaster, forwarding to the build
// counters exposed on MetricsRoute.
func (s *DevState) RecordBuild(success bool, durationSeconds float64) {
	s.metrics.RecordBuild(success, durationSeconds)
}

// BroadcastReload implements trigger.Broadcaster.
func (s *DevState) BroadcastReload(d model.ReloadDecision) {
	if d.Action == model.ActionNone {
		return
	}
	s.metrics.RecordReload(string(d.Action))
	select {
	case s.manager.broadcast <- d:
	case <-s.managerCtx.Done():
	}
}

// ClientCount reports the number of currently registered SSE clients.
func (s *DevState) ClientCount() int {
	return s.manager.clientCount()
}

// MetricsHandler serves the core's build/reload counters for scraping,
// mounted on MetricsRoute.
func (s *DevState) MetricsHandler() http.Handler {
	return Handler(s.metricsReg)
}

// Close stops the client-manager loop and waits for it to finish.
func (s *DevState) Close() {
	s.managerCancel()
	s.manager.wait()
}

func newSSEClient() *sseClient {
	return &sseClient{
		id:     uuid.NewString(),
		notify: make(chan model.ReloadDecision, 1),
	}
}
