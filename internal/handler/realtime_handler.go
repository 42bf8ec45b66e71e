package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/response"
)

type realtimeHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// RealtimeHandler upgrades secretary sessions to the live attendance feed.
type RealtimeHandler struct {
	hub    realtimeHub
	logger *zap.Logger
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(hub realtimeHub, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{hub: hub, logger: logger}
}

// Stream godoc
// @Summary Live attendance and schedule events
// @Description Websocket feed of attendance.submitted, attendance.approved, attendance.rejected and schedule.changed events.
// @Tags Realtime
// @Param access_token query string false "Access token for clients that cannot set headers"
// @Success 101
// @Router /realtime [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, claims.UserID); err != nil {
		// The upgrader has already written the failure response.
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}
