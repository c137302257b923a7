package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/onnwee/probe-tender/config"
	"github.com/onnwee/probe-tender/telemetry"
)

// secretKey prefixes the decoded phrase in the response body.
const secretKey = "SECRET_PHRASE"

// HandleSecret decodes SECRET_PHRASE and returns it as "SECRET_PHRASE=<plaintext>".
// The encoded value, never the plaintext, is echoed in error bodies.
func (h *Handlers) HandleSecret(w http.ResponseWriter, r *http.Request) {
	if !allowReadOnly(w, r) {
		return
	}
	logger := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "secret"))
	encoded := h.deps.Config.SecretPhrase

	if err := h.deps.Config.ValidateSecret(); errors.Is(err, config.ErrSecretNotSet) {
		telemetry.CountSecretRequest("not_set")
		logger.Warn("secret phrase requested but not configured")
		writeText(w, r, http.StatusInternalServerError, fmt.Sprintf("ERROR: The secret phrase was not set. [%s]", encoded))
		return
	}

	if h.deps.Secrets == nil {
		telemetry.CountSecretRequest("decode_error")
		logger.Error("no secret decoder configured")
		writeText(w, r, http.StatusInternalServerError, fmt.Sprintf("ERROR: Could not decrypt the secret phrase. [%s]", encoded))
		return
	}
	plain, err := h.deps.Secrets.Decode(encoded)
	if err != nil {
		telemetry.CountSecretRequest("decode_error")
		logger.Error("failed to decode secret phrase", slog.Any("err", err))
		writeText(w, r, http.StatusInternalServerError, fmt.Sprintf("ERROR: Could not decrypt the secret phrase. [%s]", encoded))
		return
	}

	telemetry.CountSecretRequest("ok")
	writeText(w, r, http.StatusOK, secretKey+"="+plain)
}
