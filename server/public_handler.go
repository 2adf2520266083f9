package server

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"minisite/logger"
	"minisite/storage"
)

// publicPrefix is the only key space the server streams without auth.
const publicPrefix = "public/"

// PublicHandler 从对象存储读取 public/ 下的对象
type PublicHandler struct {
	store storage.ObjectStore
}

// NewPublicHandler 创建 PublicHandler 实例
func NewPublicHandler(store storage.ObjectStore) *PublicHandler {
	return &PublicHandler{store: store}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PublicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	if strings.HasSuffix(key, "/") {
		key += "index.html"
	}
	key, err := storage.CleanKey(key)
	if err != nil || !strings.HasPrefix(key, publicPrefix) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	data, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("Error serving public object", logger.String("key", key), logger.ErrorField(err))
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", detectContentType(key))
	if path.Base(key) == "manifest.json" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		logger.Warn("Error writing public object", logger.String("key", key), logger.ErrorField(err))
	}
}

// detectContentType 根据扩展名检测内容类型
func detectContentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return storage.ContentTypeJSON
	case ".html":
		return storage.ContentTypeHTML
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
