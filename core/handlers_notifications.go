package core

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetNotifications classifies the caller's events at the current instant, or
// at ?at= (RFC 3339) when given.
func (h *handlers) GetNotifications(gctx *gin.Context) {
	userId, ok := ownedUser(gctx)
	if !ok {
		return
	}

	now := h.clock()

	if at := gctx.Query("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			abortWith(gctx, http.StatusBadRequest, "parameter 'at' must be RFC 3339", err)
			return
		}

		now = parsed
	}

	notifications, err := h.notifier.PendingNotifications(gctx.Request.Context(), userId, now)
	if err != nil {
		abortWith(gctx, StatusFor(err), "computing notifications failed", err)
		return
	}

	gctx.JSON(http.StatusOK, notifications)
}
