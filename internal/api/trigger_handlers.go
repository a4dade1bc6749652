package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ZapDesk/ZapDesk/internal/fuzzy"
	"github.com/ZapDesk/ZapDesk/internal/genai"
	"github.com/ZapDesk/ZapDesk/internal/models"
)

// triggersHandler serves the keyword trigger collection.
func (s *Server) triggersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		triggers, err := s.store.ListTriggers()
		if err != nil {
			slog.Error("Server.triggersHandler: failed to list triggers", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list triggers"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(triggers))
	case http.MethodPost:
		var trigger models.Trigger
		if err := json.NewDecoder(r.Body).Decode(&trigger); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if trigger.ID == "" {
			trigger.ID = uuid.NewString()
		}
		if err := trigger.Validate(); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if err := s.store.SaveTrigger(trigger); err != nil {
			slog.Error("Server.triggersHandler: failed to save trigger", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save trigger"))
			return
		}
		slog.Info("Server.triggersHandler: trigger created", "triggerID", trigger.ID, "keywords", trigger.Keywords)
		writeJSONResponse(w, http.StatusCreated, models.Success(trigger))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// triggerItemHandler serves /triggers/{id}.
func (s *Server) triggerItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/triggers/"), "/")
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing trigger ID"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var trigger models.Trigger
		if err := json.NewDecoder(r.Body).Decode(&trigger); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		trigger.ID = id
		if err := trigger.Validate(); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if err := s.store.SaveTrigger(trigger); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save trigger"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(trigger))
	case http.MethodDelete:
		if err := s.store.DeleteTrigger(id); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete trigger"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Trigger deleted", nil))
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// quickRepliesHandler serves the quick reply catalog.
func (s *Server) quickRepliesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		replies, err := s.store.ListQuickReplies()
		if err != nil {
			slog.Error("Server.quickRepliesHandler: failed to list quick replies", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list quick replies"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(replies))
	case http.MethodPost:
		var reply models.QuickReply
		if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if reply.Label == "" || reply.Text == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Quick reply requires a label and text"))
			return
		}
		if reply.ID == "" {
			reply.ID = uuid.NewString()
		}
		if err := s.store.SaveQuickReply(reply); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save quick reply"))
			return
		}
		writeJSONResponse(w, http.StatusCreated, models.Success(reply))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// quickReplyItemHandler serves /quick-replies/{id}.
func (s *Server) quickReplyItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/quick-replies/"), "/")
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing quick reply ID"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var reply models.QuickReply
		if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		reply.ID = id
		if reply.Label == "" || reply.Text == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Quick reply requires a label and text"))
			return
		}
		if err := s.store.SaveQuickReply(reply); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save quick reply"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(reply))
	case http.MethodDelete:
		if err := s.store.DeleteQuickReply(id); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete quick reply"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Quick reply deleted", nil))
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// suggestHandler returns the closest quick reply for an agent-typed
// fragment, or an empty result when nothing is within the configured
// edit distance.
func (s *Server) suggestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	catalog, err := s.store.ListQuickReplies()
	if err != nil {
		slog.Error("Server.suggestHandler: failed to list quick replies", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list quick replies"))
		return
	}
	settings, err := s.store.GetSettings()
	if err != nil {
		slog.Error("Server.suggestHandler: failed to load settings", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load settings"))
		return
	}

	match := fuzzy.Suggest(catalog, req.Text, settings.SuggestionSensitivity)
	writeJSONResponse(w, http.StatusOK, models.Success(match))
}

// settingsHandler serves the host settings payload.
func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.GetSettings()
		if err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load settings"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(settings))
	case http.MethodPut:
		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := s.store.SaveSettings(settings); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save settings"))
			return
		}
		slog.Info("Server.settingsHandler: settings updated", "autoHandoffSeconds", settings.AutoHandoffSeconds)
		writeJSONResponse(w, http.StatusOK, models.Success(settings))
	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// draftHandler generates step or error prompt text with the GenAI
// drafter. Returns 503 when no API key is configured.
func (s *Server) draftHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Kind    string `json:"kind"` // "step" or "error"
		Purpose string `json:"purpose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Purpose == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing purpose"))
		return
	}
	if s.drafter == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("GenAI drafting is not configured"))
		return
	}

	var (
		text string
		err  error
	)
	switch req.Kind {
	case "error":
		text, err = s.drafter.DraftErrorPrompt(r.Context(), req.Purpose)
	default:
		text, err = s.drafter.DraftStepPrompt(r.Context(), req.Purpose)
	}
	if err != nil {
		if errors.Is(err, genai.ErrDisabled) {
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("GenAI drafting is not configured"))
			return
		}
		slog.Error("Server.draftHandler: draft failed", "error", err, "kind", req.Kind)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to draft text"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"text": text}))
}
