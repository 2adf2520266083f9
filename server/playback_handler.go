package server

import (
	"net/http"
)

// PlaybackURLHandler 返回音频文件的临时播放地址
func (h *APIHandler) PlaybackURLHandler(w http.ResponseWriter, r *http.Request) {
	if h.playback == nil {
		writeErrorCode(w, http.StatusNotImplemented, CodeNotImplemented, "storage backend cannot presign playback urls")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	url, err := h.playback.Resolve(ctx, r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":  true,
		"url": url,
	})
}
