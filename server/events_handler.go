package server

import (
	"context"
	"net/http"

	"minisite/core/events"
	"minisite/core/snapshot"
	"minisite/logger"

	"github.com/gorilla/mux"
)

// EventsHandler 升级为 websocket 并订阅项目的保存事件
func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if err := snapshot.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}
	if h.hub == nil {
		writeErrorCode(w, http.StatusNotImplemented, CodeNotImplemented, "live events are disabled")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed",
			logger.String("projectId", projectID),
			logger.ErrorField(err))
		return
	}

	client := events.NewClient(h.hub, conn, projectID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.Background())
}
