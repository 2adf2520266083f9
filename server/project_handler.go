package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"minisite/core/project"
	"minisite/core/snapshot"
	"minisite/logger"
	"minisite/model"

	"github.com/gorilla/mux"
)

const projectIDAttempts = 10

type createProjectRequest struct {
	Title string `json:"title"`
}

// newProjectID draws a six digit id.
func newProjectID(random io.Reader) (string, error) {
	n, err := rand.Int(random, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// projectExists checks the registry, or the latest pointer when there is no registry.
func (h *APIHandler) projectExists(ctx context.Context, projectID string) (bool, error) {
	if h.registry != nil {
		return h.registry.Exists(ctx, projectID)
	}
	latest, err := h.snapshots.GetLatest(ctx, projectID)
	if err != nil {
		return false, err
	}
	return latest != nil, nil
}

// CreateProjectHandler 创建新项目
func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var projectID string
	for i := 0; i < projectIDAttempts && projectID == ""; i++ {
		id, err := newProjectID(h.random)
		if err != nil {
			writeError(w, r, err)
			return
		}
		exists, err := h.projectExists(ctx, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !exists {
			projectID = id
		}
	}
	if projectID == "" {
		writeError(w, r, fmt.Errorf("could not allocate a free project id after %d attempts", projectIDAttempts))
		return
	}

	skeleton := project.NewSkeleton(projectID, h.snapshots.SongCount(), h.snapshots.Now())
	skeleton.Album.Title = req.Title

	if h.registry != nil {
		if err := h.registry.CreateProject(ctx, &model.ProjectRecord{ProjectID: projectID, Title: req.Title}); err != nil {
			writeError(w, r, err)
			return
		}
	}
	// 初始快照占用项目 id，没有登记库时 projectExists 依赖它
	res, err := h.snapshots.Initialize(ctx, projectID, skeleton)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc := res.Snapshot.Project
	if h.drafts != nil {
		if err := h.drafts.Put(ctx, projectID, doc); err != nil {
			logger.Warn("failed to cache new project draft",
				logger.String("projectId", projectID),
				logger.ErrorField(err))
		}
	}

	logger.Info("project created",
		logger.String("projectId", projectID),
		logger.String("snapshotKey", res.SnapshotKey))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":          true,
		"projectId":   projectID,
		"snapshotKey": res.SnapshotKey,
		"project":     doc,
	})
}

// GetProjectHandler 获取项目登记信息
func (h *APIHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if err := snapshot.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if h.registry != nil {
		rec, err := h.registry.GetProject(ctx, projectID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if rec == nil {
			writeErrorCode(w, http.StatusNotFound, CodeProjectNotFound, "unknown project "+projectID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "project": rec})
		return
	}

	latest, err := h.snapshots.GetLatest(ctx, projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if latest == nil {
		writeErrorCode(w, http.StatusNotFound, CodeProjectNotFound, "unknown project "+projectID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"project": map[string]interface{}{
			"projectId":        projectID,
			"lastSnapshotKey":  latest.Pointer.LatestSnapshotKey,
			"lastMasterSaveAt": latest.Pointer.LastMasterSaveAt,
		},
	})
}

// GetDraftHandler 读取项目草稿
func (h *APIHandler) GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if err := snapshot.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}
	if h.drafts == nil {
		writeErrorCode(w, http.StatusNotImplemented, CodeNotImplemented, "draft cache is disabled")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	doc, err := h.drafts.Get(ctx, projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if doc == nil {
		writeErrorCode(w, http.StatusNotFound, CodeNoDraft, "no draft cached for project "+projectID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "project": doc})
}

// PutDraftHandler 保存项目草稿，请求体为项目文档本身
func (h *APIHandler) PutDraftHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if err := snapshot.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}
	if !h.authorize(w, r, projectID) {
		return
	}
	if h.drafts == nil {
		writeErrorCode(w, http.StatusNotImplemented, CodeNotImplemented, "draft cache is disabled")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	doc, err := project.Decode(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if doc.ProjectID != "" && doc.ProjectID != projectID {
		writeError(w, r, project.ErrInvalidDocument.New("document projectId %q does not match %q", doc.ProjectID, projectID))
		return
	}
	if err := project.Normalize(doc, h.snapshots.SongCount()); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.drafts.Put(ctx, projectID, doc); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "projectId": projectID})
}
