package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/fluentia/internal/assessment"
	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/store"
	"github.com/MrWong99/fluentia/pkg/types"
)

const writeTimeout = 5 * time.Second

// Client message types.
const (
	msgStart   = "start"
	msgInterim = "interim"
	msgWord    = "word"
	msgFinal   = "final"
	msgReset   = "reset"
)

// Server message types.
const (
	msgFeedback   = "feedback"
	msgOverall    = "overall"
	msgAssessment = "assessment"
	msgError      = "error"
)

// clientMessage is any message a streaming client sends. Which fields are
// read depends on Type:
//
//	start    target, language, session_id
//	interim  text
//	word     word, start_ms, end_ms (offsets from start; omitted start_ms
//	         means "now")
//	final    text (empty reuses the latest interim text)
//	reset    -
type clientMessage struct {
	Type      string `json:"type"`
	Target    string `json:"target,omitempty"`
	Language  string `json:"language,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Word      string `json:"word,omitempty"`
	StartMS   *int64 `json:"start_ms,omitempty"`
	EndMS     *int64 `json:"end_ms,omitempty"`
}

// serverMessage is any message the server sends.
type serverMessage struct {
	Type       string                      `json:"type"`
	SessionID  string                      `json:"session_id,omitempty"`
	Feedback   []types.RealTimeFeedback    `json:"feedback,omitempty"`
	Progress   float64                     `json:"progress,omitempty"`
	Overall    *assessment.OverallFeedback `json:"overall,omitempty"`
	Assessment *types.AssessmentResult     `json:"assessment,omitempty"`
	Error      string                      `json:"error,omitempty"`
}

// streamConn is the state of one WebSocket connection. It is owned by the
// read loop goroutine.
type streamConn struct {
	srv     *Server
	conn    *websocket.Conn
	session *assessment.Session
	started time.Time
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	ctx := r.Context()
	s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	sc := &streamConn{srv: s, conn: conn}
	err = sc.run(ctx)
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
	default:
		observe.Logger(ctx).Warn("stream closed with error", "err", err)
		conn.Close(websocket.StatusInternalError, "stream error")
	}
}

// run reads client messages until the connection fails or closes.
func (c *streamConn) run(ctx context.Context) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			if err := c.sendError(ctx, "binary messages are not supported"); err != nil {
				return err
			}
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := c.sendError(ctx, "invalid JSON message"); err != nil {
				return err
			}
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle applies one client message. Protocol mistakes are reported to the
// client; only write failures end the connection.
func (c *streamConn) handle(ctx context.Context, msg clientMessage) error {
	if msg.Type == msgStart {
		return c.start(ctx, msg)
	}
	if c.session == nil {
		return c.sendError(ctx, "send a start message first")
	}
	ctx = observe.WithSession(ctx, c.session.ID())

	switch msg.Type {
	case msgInterim:
		fb := c.session.Interim(ctx, msg.Text)
		c.putLive(ctx, msg.Text)
		return c.send(ctx, serverMessage{
			Type:      msgFeedback,
			SessionID: c.session.ID(),
			Feedback:  fb,
			Progress:  c.session.Progress(),
		})

	case msgWord:
		if msg.Word == "" {
			return c.sendError(ctx, "word message without word")
		}
		c.word(msg)
		return nil

	case msgFinal:
		overall := c.session.Overall(msg.Text)
		if err := c.send(ctx, serverMessage{Type: msgOverall, SessionID: c.session.ID(), Overall: &overall}); err != nil {
			return err
		}
		res := c.session.Finish(ctx, msg.Text)
		c.srv.save(ctx, c.session.ID(), res)
		return c.send(ctx, serverMessage{Type: msgAssessment, SessionID: c.session.ID(), Assessment: res})

	case msgReset:
		c.started = c.srv.cfg.Now()
		c.session.Start(c.started)
		return c.send(ctx, serverMessage{Type: msgFeedback, SessionID: c.session.ID()})

	default:
		return c.sendError(ctx, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *streamConn) start(ctx context.Context, msg clientMessage) error {
	id := msg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	c.session = assessment.NewSession(id, msg.Target, msg.Language, c.srv.cfg.Assessor)
	c.started = c.srv.cfg.Now()
	c.session.Start(c.started)
	observe.Logger(observe.WithSession(ctx, id)).Debug("stream session started", "language", msg.Language)
	return c.send(ctx, serverMessage{Type: msgFeedback, SessionID: id})
}

func (c *streamConn) word(msg clientMessage) {
	if msg.StartMS == nil {
		c.session.Word(msg.Word, c.srv.cfg.Now())
		return
	}
	start := c.started.Add(time.Duration(*msg.StartMS) * time.Millisecond)
	if msg.EndMS == nil {
		c.session.Word(msg.Word, start)
		return
	}
	c.session.WordSpan(msg.Word, start, c.started.Add(time.Duration(*msg.EndMS)*time.Millisecond))
}

// putLive publishes the interim state. Cache failures are logged and
// counted but do not interrupt the stream.
func (c *streamConn) putLive(ctx context.Context, interim string) {
	live := c.srv.cfg.Live
	if live == nil {
		return
	}
	snap := store.LiveSnapshot{
		SessionID: c.session.ID(),
		Target:    c.session.Target(),
		Interim:   interim,
		Feedback:  c.session.Feedback(),
		Progress:  c.session.Progress(),
		UpdatedAt: c.srv.cfg.Now().UTC(),
	}
	if err := live.PutLive(ctx, snap); err != nil {
		c.srv.cfg.Metrics.RecordStoreError(ctx, c.srv.cfg.LiveName, "put")
		observe.Logger(ctx).Warn("failed to publish live feedback", "session_id", snap.SessionID, "err", err)
	}
}

func (c *streamConn) sendError(ctx context.Context, text string) error {
	slog.Debug("stream protocol error", "err", text)
	return c.send(ctx, serverMessage{Type: msgError, Error: text})
}

func (c *streamConn) send(ctx context.Context, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
