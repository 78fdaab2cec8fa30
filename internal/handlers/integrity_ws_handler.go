package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// buildUpgrader accepts any origin when allowedOrigins is empty or "*"
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// IntegrityHandler streams live tab-switch notices to proctors
type IntegrityHandler struct {
	BaseHandler
	integrityService services.IntegrityService
	upgrader         websocket.Upgrader
}

func NewIntegrityHandler(integrityService services.IntegrityService, logger utils.Logger, allowedOrigins []string) *IntegrityHandler {
	return &IntegrityHandler{
		BaseHandler:      NewBaseHandler(logger),
		integrityService: integrityService,
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// WatchAssessment upgrades to a websocket carrying integrity notices
// @Summary Live integrity feed
// @Tags integrity
// @Param id path int true "Assessment ID"
// @Success 101
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /ws/assessments/{id}/integrity [get]
func (h *IntegrityHandler) WatchAssessment(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Authorization and feed errors are still plain HTTP responses here
	notices, err := h.integrityService.Watch(ctx, actor, assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger(c, h.logger).Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := utils.GetLogger(c, h.logger).With("assessment_id", assessmentID, "watcher_id", actor.ID)
	log.Info("Integrity watcher connected")

	// The read pump only services control frames and detects disconnects
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("Unexpected close", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Integrity watcher disconnected")
			return
		case notice, open := <-notices:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			if err := conn.WriteJSON(notice); err != nil {
				log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
