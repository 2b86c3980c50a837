package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxEnvelopeBytes bounds a forwarded Sentry envelope.
const maxEnvelopeBytes = 1 << 20

// SentryTunnelHandler proxies Sentry envelopes from the browser through the
// backend, avoiding ad blockers and CORS issues with Sentry's ingest endpoint.
type SentryTunnelHandler struct {
	dsn    string
	client *http.Client
}

// NewSentryTunnelHandler creates a tunnel accepting envelopes for dsn only.
// An empty dsn disables the tunnel.
func NewSentryTunnelHandler(dsn string, client *http.Client) *SentryTunnelHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &SentryTunnelHandler{dsn: dsn, client: client}
}

// Tunnel reads a Sentry envelope from the request body, checks that its
// header names the configured frontend DSN, and forwards it to the ingest API.
func (h *SentryTunnelHandler) Tunnel(w http.ResponseWriter, r *http.Request) {
	if h.dsn == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ingestURL, status := h.ingestURL(body)
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, ingestURL, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create sentry tunnel request", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	req.Header.Set("Content-Type", "application/x-sentry-envelope")

	resp, err := h.client.Do(req)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to forward sentry envelope", slog.Any("error", err))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.WriteHeader(resp.StatusCode)
}

// ingestURL derives the envelope endpoint from the envelope's header line.
func (h *SentryTunnelHandler) ingestURL(envelope []byte) (string, int) {
	scanner := bufio.NewScanner(bytes.NewReader(envelope))
	if !scanner.Scan() {
		return "", http.StatusBadRequest
	}

	var header struct {
		DSN string `json:"dsn"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return "", http.StatusBadRequest
	}
	if header.DSN != h.dsn {
		return "", http.StatusUnauthorized
	}

	// DSN format: https://<key>@<host>/<project_id>
	dsnURL, err := url.Parse(header.DSN)
	if err != nil || dsnURL.Host == "" {
		return "", http.StatusBadRequest
	}
	projectID := strings.Trim(dsnURL.Path, "/")
	return dsnURL.Scheme + "://" + dsnURL.Host + "/api/" + projectID + "/envelope/", http.StatusOK
}
