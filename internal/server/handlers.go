package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/pii"
	"github.com/mailsift/mailsift/internal/vault"
	"github.com/mailsift/mailsift/internal/websocket"
)

const version = "1.0.0"

type classifyRequest struct {
	InputEmailBody string `json:"input_email_body"`
}

type maskedEntity struct {
	Position       [2]int `json:"position"`
	Classification string `json:"classification"`
	Entity         string `json:"entity"`
}

type classifyResponse struct {
	InputEmailBody       string         `json:"input_email_body"`
	ListOfMaskedEntities []maskedEntity `json:"list_of_masked_entities"`
	MaskedEmail          string         `json:"masked_email"`
	CategoryOfTheEmail   string         `json:"category_of_the_email"`
	EmailID              string         `json:"email_id"`
}

type unmaskRequest struct {
	MaskedEmail string `json:"masked_email"`
	AccessKey   string `json:"access_key"`
}

type errorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// handleClassify masks the email body, stores the reversal record, and
// classifies the masked text.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := requestIDFrom(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.masker.ProcessText(r.Context(), req.InputEmailBody)
	if errors.Is(err, pii.ErrEmptyText) {
		writeError(w, http.StatusBadRequest, "input_email_body must not be empty")
		return
	}
	if err != nil {
		log.Error("Detection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "detection failed")
		return
	}

	rec := &vault.MaskedRecord{
		MaskedText:   result.MaskedText,
		OriginalText: result.Original,
		Entities:     result.Manifest,
	}
	id, err := s.vault.Save(r.Context(), rec)
	if err != nil {
		log.Error("Vault save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store record")
		return
	}

	// The record is durable at this point. A classifier failure surfaces
	// as a server error, but the saved record is not rolled back.
	category, err := s.classifier.Classify(r.Context(), result.MaskedText)
	if err != nil {
		log.Error("Classification failed", zap.Error(err), zap.String("record_id", id))
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}
	if err := s.vault.SetCategory(r.Context(), id, category); err != nil {
		log.Error("Failed to persist category", zap.Error(err), zap.String("record_id", id))
		writeError(w, http.StatusInternalServerError, "failed to store category")
		return
	}

	if s.cache != nil {
		rec.Category = category
		s.cache.Set(r.Context(), rec)
	}

	if s.hub != nil {
		s.hub.Broadcast(websocket.Event{
			Type:      websocket.EventTypePIIDetection,
			Timestamp: time.Now(),
			Data: websocket.PIIDetectionEvent{
				RequestID:  requestID,
				RecordID:   id,
				Findings:   result.Findings,
				Category:   category,
				DurationMS: float64(time.Since(start).Microseconds()) / 1000,
			},
		})
	}

	entities := make([]maskedEntity, 0, len(result.Manifest))
	for _, entry := range result.Manifest {
		entities = append(entities, maskedEntity{
			Position:       entry.Span,
			Classification: string(entry.Type),
			Entity:         entry.Value,
		})
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		InputEmailBody:       result.Original,
		ListOfMaskedEntities: entities,
		MaskedEmail:          result.MaskedText,
		CategoryOfTheEmail:   category,
		EmailID:              id,
	})
}

// handleUnmask restores the original email for a caller presenting the
// access key.
func (s *Server) handleUnmask(w http.ResponseWriter, r *http.Request) {
	var req unmaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.unmasker.Unmask(r.Context(), req.MaskedEmail, req.AccessKey)
	if err != nil {
		s.writeVaultError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"original_email":  rec.OriginalText,
			"masked_email":    rec.MaskedText,
			"masked_entities": rec.Entities,
		},
	})
}

// handleRecord returns the redacted view of a record by id. No credential
// is required; the original text is withheld.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if s.cache != nil {
		if rec := s.cache.Get(r.Context(), id); rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	rec, err := s.vault.Masked(r.Context(), id)
	if err != nil {
		s.writeVaultError(w, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleRecordOriginal returns the full record by id for a caller
// presenting the access key in the X-Access-Key header.
func (s *Server) handleRecordOriginal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	accessKey := r.Header.Get("X-Access-Key")

	rec, err := s.unmasker.UnmaskID(r.Context(), id, accessKey)
	if err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   rec,
	})
}

func (s *Server) writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid access key")
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, "no matching record")
	default:
		s.logger.Error("Vault lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

// handleInfo reports configuration and runtime details safe to expose.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":       "mailsift",
		"version":    version,
		"go_version": runtime.Version(),
		"uptime":     time.Since(s.startTime).String(),
		"classifier": s.classifier.Name(),
		"detection": map[string]interface{}{
			"context_window": s.cfg.Detection.ContextWindow,
			"detectors":      s.cfg.Detection.Detectors,
		},
	}
	if s.cache != nil {
		info["cache"] = s.cache.Stats()
	}
	if s.hub != nil {
		info["websocket"] = s.hub.GetStats()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleStatus serves a minimal status page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, statusPage, version, time.Since(s.startTime).Round(time.Second))
}

const statusPage = `<!DOCTYPE html>
<html>
<head><title>mailsift</title></head>
<body>
<h1>mailsift</h1>
<p>Email PII masking and triage service. Version %s, up %s.</p>
<ul>
<li><code>POST /v1/classify</code></li>
<li><code>POST /v1/unmask</code></li>
<li><code>GET /health</code>, <code>GET /info</code>, <code>GET /ws</code></li>
</ul>
</body>
</html>
`

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Status: "error", Detail: detail})
}
