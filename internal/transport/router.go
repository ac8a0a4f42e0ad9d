package transport

import "net/http"

type Handler interface {
	health(w http.ResponseWriter, r *http.Request)
	videoInfo(w http.ResponseWriter, r *http.Request)
	download(w http.ResponseWriter, r *http.Request)
	status(w http.ResponseWriter, r *http.Request)
	file(w http.ResponseWriter, r *http.Request)
	cleanup(w http.ResponseWriter, r *http.Request)
	platforms(w http.ResponseWriter, r *http.Request)
}

type router struct {
	h       Handler
	metrics http.Handler
}

func NewRouter(h Handler, metrics http.Handler) *router {
	return &router{h: h, metrics: metrics}
}

func (r *router) MountRoutes(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("GET /health", r.h.health)
	mux.HandleFunc("POST /api/video-info", r.h.videoInfo)
	mux.HandleFunc("POST /api/download", r.h.download)
	mux.HandleFunc("GET /api/download/{id}/status", r.h.status)
	mux.HandleFunc("GET /api/download/{id}/file", r.h.file)
	mux.HandleFunc("DELETE /api/download/{id}", r.h.cleanup)
	mux.HandleFunc("GET /api/supported-platforms", r.h.platforms)
	mux.Handle("GET /metrics", r.metrics)

	return mux
}
