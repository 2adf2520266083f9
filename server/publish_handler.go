package server

import (
	"net/http"

	"minisite/core/snapshot"
	"minisite/model"

	"github.com/gorilla/mux"
)

type publishRequest struct {
	ProjectID   string `json:"projectId"`
	SnapshotKey string `json:"snapshotKey"`
}

// PublishHandler 发布快照为公开的迷你站
func (h *APIHandler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := snapshot.ValidateProjectID(req.ProjectID); err != nil {
		writeError(w, r, err)
		return
	}
	if !h.authorize(w, r, req.ProjectID) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.publisher.Publish(ctx, req.ProjectID, req.SnapshotKey)
	h.metrics.observePublish(err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"shareId":     res.ShareID,
		"publicUrl":   res.PublicURL,
		"manifestKey": res.ManifestKey,
		"publishedAt": res.PublishedAt,
	})
}

// PublicationsHandler 列出项目的发布记录
func (h *APIHandler) PublicationsHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if err := snapshot.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}

	pubs := []*model.PublicationRecord{}
	if h.registry != nil {
		ctx, cancel := h.requestContext(r)
		defer cancel()

		recs, err := h.registry.ListPublications(ctx, projectID, 50)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pubs = append(pubs, recs...)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"projectId":    projectID,
		"publications": pubs,
	})
}
