package server

import (
	"context"
	"encoding/json"
	"net/http"

	"minisite/core/project"
	"minisite/core/snapshot"
	"minisite/logger"
	"minisite/model"

	"github.com/gorilla/mux"
)

type masterSaveRequest struct {
	ProjectID string          `json:"projectId"`
	Section   string          `json:"section,omitempty"`
	Project   json.RawMessage `json:"project,omitempty"`
}

type patchRequest struct {
	ProjectID string                 `json:"projectId"`
	Section   string                 `json:"section"`
	Patch     map[string]interface{} `json:"patch"`
}

// writeSaveError answers a failed save. A pointer failure still reports the written snapshot key.
func writeSaveError(w http.ResponseWriter, r *http.Request, res *snapshot.SaveResult, err error) {
	if res == nil {
		writeError(w, r, err)
		return
	}
	status, code := classify(err)
	logger.Error("master save partially failed",
		logger.String("code", code),
		logger.String("snapshotKey", res.SnapshotKey),
		logger.ErrorField(err))
	writeJSON(w, status, errorResponse{
		Error:       code,
		Message:     err.Error(),
		SnapshotKey: res.SnapshotKey,
	})
}

// loadDocument decodes the request project, or falls back to the cached draft when none is sent.
func (h *APIHandler) loadDocument(ctx context.Context, req *masterSaveRequest) (*model.Project, error) {
	if len(req.Project) > 0 && string(req.Project) != "null" {
		return project.Decode(req.Project)
	}
	if h.drafts == nil {
		return nil, snapshot.ErrInvalidRequest.New("project is required")
	}
	doc, err := h.drafts.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, snapshot.ErrInvalidRequest.New("project is required and no draft is cached for %s", req.ProjectID)
	}
	return doc, nil
}

// MasterSaveHandler 保存项目的完整快照并移动 latest 指针
func (h *APIHandler) MasterSaveHandler(w http.ResponseWriter, r *http.Request) {
	var req masterSaveRequest
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

	var section model.Section
	if req.Section != "" {
		s, err := model.ParseSection(req.Section)
		if err != nil {
			writeError(w, r, snapshot.ErrInvalidRequest.Wrap(err))
			return
		}
		section = s
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	doc, err := h.loadDocument(ctx, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.snapshots.MasterSave(ctx, req.ProjectID, doc, section)
	h.metrics.observeSave("full", err)
	if err != nil {
		writeSaveError(w, r, res, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":               true,
		"snapshotKey":      res.SnapshotKey,
		"latestKey":        res.LatestKey,
		"lastMasterSaveAt": res.Snapshot.MasterSavedAt,
		"ignoredLocked":    ignoredLocked(res),
	})
}

// LatestHandler 读取项目最新快照
func (h *APIHandler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	latest, err := h.snapshots.GetLatest(ctx, projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if latest == nil {
		writeErrorCode(w, http.StatusNotFound, CodeNoLatestSnapshot, "no master save yet for project "+projectID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"latestKey": latest.LatestKey,
		"latest":    latest.Pointer,
		"snapshot":  latest.Snapshot,
	})
}

// SnapshotHandler 按 key 直接读取快照
func (h *APIHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	snap, err := h.snapshots.GetSnapshot(ctx, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if snap == nil {
		writeErrorCode(w, http.StatusNotFound, CodeSnapshotNotFound, "no snapshot at "+key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"snapshot": snap,
	})
}

// PatchHandler 合并单个分区的修改后执行 master-save
func (h *APIHandler) PatchHandler(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
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
	section, err := model.ParseSection(req.Section)
	if err != nil {
		writeError(w, r, snapshot.ErrInvalidRequest.Wrap(err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.snapshots.PatchSection(ctx, req.ProjectID, section, req.Patch)
	h.metrics.observeSave("patch", err)
	if err != nil {
		writeSaveError(w, r, res, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"snapshotKey":   res.SnapshotKey,
		"latestKey":     res.LatestKey,
		"ignoredLocked": ignoredLocked(res),
	})
}

func ignoredLocked(res *snapshot.SaveResult) []string {
	if res.IgnoredLocked == nil {
		return []string{}
	}
	return res.IgnoredLocked
}
