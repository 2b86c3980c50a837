package handlers

import (
	"net/http"

	"github.com/commune/backend/internal/config"
	"github.com/commune/backend/internal/models"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// PublicConfig returns non-sensitive configuration for the frontend
func (h *ConfigHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"chatHistorySize":        h.cfg.ChatHistorySize,
		"heartbeatIntervalMs":    h.cfg.HeartbeatInterval.Milliseconds(),
		"maxDirectMessageLength": models.MaxDirectMessageLen,
	}
	if h.cfg.SentryDSNFrontend != "" {
		response["sentryDsn"] = h.cfg.SentryDSNFrontend
	}

	writeJSON(w, http.StatusOK, response)
}
