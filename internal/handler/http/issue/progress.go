package issue

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/handler/http/respond"
	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/pipeline"
	"sourcesage/internal/usecase/analyze"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsQueueSize = 64
)

// AnalyzerFactory returns an Analyzer that reports progress to o.
type AnalyzerFactory func(o pipeline.Observer) Analyzer

// wsInbound is a client message. Type is ping, search or analyze.
type wsInbound struct {
	Type            string   `json:"type"`
	Skills          []string `json:"skills,omitempty"`
	MaxResults      *int     `json:"max_results,omitempty"`
	IssueURLs       []string `json:"issue_urls,omitempty"`
	GenerateReports bool     `json:"generate_reports,omitempty"`
}

// wsOutbound is a server message. Type is pong, progress, search_result,
// analysis_result or error.
type wsOutbound struct {
	Type     string           `json:"type"`
	Stage    pipeline.Step    `json:"stage,omitempty"`
	Message  string           `json:"message,omitempty"`
	Progress int              `json:"progress,omitempty"`
	Search   *SearchResponse  `json:"search,omitempty"`
	Analysis *AnalyzeResponse `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ProgressHandler serves GET /api/ws. A connection runs one job at a time
// and streams pipeline progress while it runs.
type ProgressHandler struct {
	Search   Searcher
	Analyze  AnalyzerFactory
	Origins  []string
	Logger   *slog.Logger
	upgrader *websocket.Upgrader
	once     sync.Once
}

func (h *ProgressHandler) init() {
	h.once.Do(func() {
		allowAll := len(h.Origins) == 0
		allowed := make(map[string]bool, len(h.Origins))
		for _, o := range h.Origins {
			if o == "*" {
				allowAll = true
			}
			allowed[o] = true
		}
		h.upgrader = &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		}
		if h.Logger == nil {
			h.Logger = slog.Default()
		}
	})
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.Logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	s := &wsSession{
		conn:   conn,
		out:    make(chan wsOutbound, wsQueueSize),
		h:      h,
		logger: h.Logger,
	}
	s.run(r.Context())
}

type wsSession struct {
	conn   *websocket.Conn
	out    chan wsOutbound
	h      *ProgressHandler
	logger *slog.Logger

	mu   sync.Mutex
	busy bool
	jobs sync.WaitGroup
}

func (s *wsSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer func() { _ = s.conn.Close() }()

	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writerDone := make(chan struct{})
	go s.writeLoop(ctx, writerDone)

	for {
		var in wsInbound
		if err := s.conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", slog.Any("error", err))
			}
			break
		}
		s.dispatch(ctx, in)
	}

	cancel()
	s.jobs.Wait()
	<-writerDone
}

func (s *wsSession) writeLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) dispatch(ctx context.Context, in wsInbound) {
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "ping":
		s.deliver(ctx, wsOutbound{Type: "pong"})
	case "search":
		s.start(ctx, func(ctx context.Context) wsOutbound { return s.search(ctx, in) })
	case "analyze":
		s.start(ctx, func(ctx context.Context) wsOutbound { return s.analyze(ctx, in) })
	case "":
		s.deliver(ctx, wsOutbound{Type: "error", Error: "type is required"})
	default:
		s.deliver(ctx, wsOutbound{Type: "error", Error: "unsupported type: " + in.Type})
	}
}

// start runs job in the background unless another job is in progress.
// The connection is released before the job's final message is queued.
func (s *wsSession) start(ctx context.Context, job func(context.Context) wsOutbound) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.deliver(ctx, wsOutbound{Type: "error", Error: "a request is already running on this connection"})
		return
	}
	s.busy = true
	s.mu.Unlock()

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		msg := job(ctx)
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		if msg.Type != "" {
			s.deliver(ctx, msg)
		}
	}()
}

func (s *wsSession) search(ctx context.Context, in wsInbound) wsOutbound {
	if s.h.Search == nil {
		return wsOutbound{Type: "error", Error: "search is not available"}
	}
	req := searchRequest(in)
	if err := req.validate(); err != nil {
		return s.fail(err)
	}
	s.progress(pipeline.Event{Step: pipeline.StepDiscover, Message: "Searching for good first issues", Percent: pipeline.StepDiscover.Percent()})
	res, err := s.h.Search.Search(ctx, req.input())
	if err != nil {
		return s.fail(err)
	}
	resp := toSearchResponse(res)
	return wsOutbound{Type: "search_result", Search: &resp}
}

func (s *wsSession) analyze(ctx context.Context, in wsInbound) wsOutbound {
	if s.h.Analyze == nil {
		return wsOutbound{Type: "error", Error: "analysis is not available"}
	}
	svc := s.h.Analyze(s.progress)
	res, err := svc.Analyze(ctx, analyze.Request{IssueURLs: in.IssueURLs, GenerateReports: in.GenerateReports})
	if err != nil {
		return s.fail(err)
	}
	resp := toAnalyzeResponse(res)
	return wsOutbound{Type: "analysis_result", Analysis: &resp}
}

// progress is the pipeline observer; it never blocks the run and drops
// the update when the client is not keeping up.
func (s *wsSession) progress(e pipeline.Event) {
	select {
	case s.out <- wsOutbound{Type: "progress", Stage: e.Step, Message: e.Message, Progress: e.Percent}:
	default:
		s.logger.Debug("progress update dropped", slog.String("stage", string(e.Step)))
	}
}

// deliver queues a message that must not be dropped.
func (s *wsSession) deliver(ctx context.Context, msg wsOutbound) {
	select {
	case s.out <- msg:
	case <-ctx.Done():
	}
}

// fail turns a job error into a client-safe error message. A cancelled
// job produces no message.
func (s *wsSession) fail(err error) wsOutbound {
	msg := "internal server error"
	var ve *entity.ValidationError
	switch {
	case errors.As(err, &ve):
		msg = ve.Error()
	case errors.Is(err, context.Canceled):
		return wsOutbound{}
	case errors.Is(err, entity.ErrConfiguration):
		msg = "service is not configured"
	default:
		s.logger.Error("websocket job failed", slog.String("error", respond.SanitizeError(err)))
	}
	return wsOutbound{Type: "error", Error: msg}
}

func searchRequest(in wsInbound) SearchRequest {
	return SearchRequest{Skills: in.Skills, MaxResults: in.MaxResults}
}
