package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"minisite/core/auth"
	"minisite/core/project"
	"minisite/core/publish"
	"minisite/core/snapshot"
	"minisite/logger"
	"minisite/storage"
)

// Machine-readable error codes returned in the "error" field.
const (
	CodeStorageUnavailable     = "STORAGE_UNAVAILABLE"
	CodeSnapshotWriteFailed    = "SNAPSHOT_WRITE_FAILED"
	CodePointerWriteFailed     = "POINTER_WRITE_FAILED"
	CodeDanglingPointer        = "DANGLING_LATEST_POINTER"
	CodeInvalidProjectDocument = "INVALID_PROJECT_DOCUMENT"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodePublishTargetMissing   = "PUBLISH_TARGET_MISSING"
	CodeSnapshotNotFound       = "SNAPSHOT_NOT_FOUND"
	CodeNoLatestSnapshot       = "NO_LATEST_SNAPSHOT_KEY"
	CodeNoDraft                = "NO_DRAFT"
	CodeProjectNotFound        = "PROJECT_NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeRateLimited            = "RATE_LIMITED"
	CodeNotImplemented         = "NOT_IMPLEMENTED"
	CodeInternal               = "INTERNAL"
)

type errorResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	Message     string `json:"message,omitempty"`
	SnapshotKey string `json:"snapshotKey,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// classify maps an error to its HTTP status and machine code.
// Write failures are checked first because they wrap the storage error that caused them.
func classify(err error) (int, string) {
	switch {
	case snapshot.ErrSnapshotWrite.Has(err):
		return http.StatusInternalServerError, CodeSnapshotWriteFailed
	case snapshot.ErrPointerWrite.Has(err):
		return http.StatusInternalServerError, CodePointerWriteFailed
	case snapshot.ErrDanglingPointer.Has(err):
		return http.StatusInternalServerError, CodeDanglingPointer
	case storage.ErrUnavailable.Has(err):
		return http.StatusServiceUnavailable, CodeStorageUnavailable
	case project.ErrInvalidDocument.Has(err):
		return http.StatusBadRequest, CodeInvalidProjectDocument
	case snapshot.ErrInvalidRequest.Has(err), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest, CodeInvalidRequest
	case publish.ErrTargetMissing.Has(err):
		return http.StatusBadRequest, CodePublishTargetMissing
	case publish.ErrSnapshotNotFound.Has(err):
		return http.StatusNotFound, CodeSnapshotNotFound
	case auth.ErrInvalidToken.Has(err):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, storage.ErrPresignUnsupported):
		return http.StatusNotImplemented, CodeNotImplemented
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.ErrorField(err))
	}
	writeErrorCode(w, status, code, err.Error())
}
