package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"grc-platform/internal/audit"
	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamSendBuffer = 256
	streamPingPeriod = 30 * time.Second
	streamPongWait   = 60 * time.Second
	streamWriteWait  = 10 * time.Second
	streamReadLimit  = 512
)

func (h Handlers) ListAuditLogs(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	before, ok := queryTime(c, "before")
	if !ok {
		return
	}
	beforeSeq, ok := queryInt(c, "before_seq")
	if !ok {
		return
	}

	f := audit.Filter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Limit:      limit,
		BeforeSeq:  int64(beforeSeq),
	}
	if !before.IsZero() {
		f.Before = &before
	}
	out, err := h.Audit.Query(ctxOf(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": out})
}

// streamFrame is what the audit stream writes. A new connection receives one
// snapshot frame followed by an insert frame per appended entry.
type streamFrame struct {
	Type    string        `json:"type"`
	Entries []audit.Entry `json:"entries,omitempty"`
	Entry   *audit.Entry  `json:"entry,omitempty"`
}

func (h Handlers) upgrader() *websocket.Upgrader {
	allowed := h.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.Contains(allowed, u.Scheme+"://"+u.Host)
		},
	}
}

// StreamAuditLogs upgrades to a websocket and pushes audit entries as they
// are appended. The subscription is cancelled on every exit path.
func (h Handlers) StreamAuditLogs(c *gin.Context) {
	log := logger.FromGin(c)

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn("audit stream upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	live := make(chan audit.Entry, streamSendBuffer)
	sub := h.Audit.Subscribe(func(e audit.Entry) {
		select {
		case live <- e:
		default:
			metrics.AuditSubscriberDrops.Inc()
		}
	})
	defer sub.Cancel()

	// Subscribe before the snapshot so nothing appended in between is lost;
	// entries already in the snapshot are skipped below.
	limit := h.StreamSnapshot
	if limit <= 0 {
		limit = 50
	}
	snapshot, err := h.Audit.Query(ctxOf(c), audit.Filter{Limit: limit})
	if err != nil {
		log.Warn("audit stream snapshot failed", slog.Any("err", err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot failed"),
			time.Now().Add(streamWriteWait))
		return
	}
	seen := make(map[string]struct{}, len(snapshot))
	for _, e := range snapshot {
		seen[e.ID] = struct{}{}
	}
	if err := writeFrame(conn, streamFrame{Type: "snapshot", Entries: snapshot}); err != nil {
		return
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case e := <-live:
			if _, dup := seen[e.ID]; dup {
				delete(seen, e.ID)
				continue
			}
			if err := writeFrame(conn, streamFrame{Type: "insert", Entry: &e}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case <-closed:
			return
		case <-ctxOf(c).Done():
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh.
// It closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f streamFrame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
