package server

import (
	"net/http"

	"go.uber.org/zap"

	"djc/config"
)

const timeoutMessage = "Request timed out."

func routes(h *handler, cfg *config.ServerConfig, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	protect := bearerAuth(cfg.AccessToken)
	mux.Handle("POST /convert", protect(http.HandlerFunc(h.handleConvert)))
	mux.Handle("GET /download", protect(http.HandlerFunc(h.handleDownload)))
	mux.Handle("POST /download", protect(http.HandlerFunc(h.handleDownload)))
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return requestLog(log)(http.TimeoutHandler(mux, cfg.RequestTimeout, timeoutMessage))
}
