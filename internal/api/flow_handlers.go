// Package api provides HTTP handlers for flow editing and session control.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ZapDesk/ZapDesk/internal/editor"
	"github.com/ZapDesk/ZapDesk/internal/models"
)

// flowsHandler serves the flow collection: list and create.
func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		flows, err := s.store.ListFlows()
		if err != nil {
			slog.Error("Server.flowsHandler: failed to list flows", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list flows"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(flows))
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Server.flowsHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		flow := editor.NewFlow(req.Name)
		if err := s.store.SaveFlow(*flow); err != nil {
			slog.Error("Server.flowsHandler: failed to save flow", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
			return
		}
		slog.Info("Server.flowsHandler: flow created", "flowID", flow.ID, "name", flow.Name)
		writeJSONResponse(w, http.StatusCreated, models.Success(flow))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// flowItemHandler dispatches /flows/{id} and its sub-resources.
func (s *Server) flowItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/flows/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing flow ID"))
		return
	}
	flowID := parts[0]

	if len(parts) == 1 {
		s.handleFlowResource(w, r, flowID)
		return
	}

	switch parts[1] {
	case "lint":
		s.handleFlowLint(w, r, flowID)
	case "steps":
		stepID := ""
		if len(parts) > 2 {
			stepID = parts[2]
		}
		s.handleFlowSteps(w, r, flowID, stepID)
	case "connect":
		s.handleFlowConnect(w, r, flowID, true)
	case "disconnect":
		s.handleFlowConnect(w, r, flowID, false)
	case "routes":
		s.handleFlowRoutes(w, r, flowID)
	case "start":
		s.handleFlowStart(w, r, flowID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown flow resource"))
	}
}

func (s *Server) handleFlowResource(w http.ResponseWriter, r *http.Request, flowID string) {
	switch r.Method {
	case http.MethodGet:
		flow, err := s.store.GetFlow(flowID)
		if err != nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(flow))
	case http.MethodPut:
		var flow models.Flow
		if err := json.NewDecoder(r.Body).Decode(&flow); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		flow.ID = flowID
		if err := flow.Validate(); err != nil {
			slog.Warn("Server.handleFlowResource: flow validation failed", "error", err, "flowID", flowID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		flow.SyncDerivedTexts()
		if err := s.store.SaveFlow(flow); err != nil {
			slog.Error("Server.handleFlowResource: failed to save flow", "error", err, "flowID", flowID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(flow))
	case http.MethodDelete:
		if err := s.store.DeleteFlow(flowID); err != nil {
			slog.Error("Server.handleFlowResource: failed to delete flow", "error", err, "flowID", flowID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete flow"))
			return
		}
		slog.Info("Server.handleFlowResource: flow deleted", "flowID", flowID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow deleted", nil))
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFlowLint(w http.ResponseWriter, r *http.Request, flowID string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flow, err := s.store.GetFlow(flowID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	warnings := editor.Lint(flow)
	writeJSONResponse(w, http.StatusOK, models.Success(warnings))
}

func (s *Server) handleFlowSteps(w http.ResponseWriter, r *http.Request, flowID, stepID string) {
	flow, err := s.store.GetFlow(flowID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}

	switch {
	case stepID == "" && r.Method == http.MethodPost:
		var req struct {
			Type models.StepType `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		step, err := editor.AddStep(flow, req.Type)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if err := s.store.SaveFlow(*flow); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
			return
		}
		slog.Info("Server.handleFlowSteps: step added", "flowID", flowID, "stepID", step.ID, "type", step.Type)
		writeJSONResponse(w, http.StatusCreated, models.Success(step))
	case stepID != "" && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
		var patch editor.StepPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := editor.UpdateStep(flow, stepID, patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if err := s.store.SaveFlow(*flow); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(flow))
	case stepID != "" && r.Method == http.MethodDelete:
		editor.DeleteStep(flow, stepID)
		if err := s.store.SaveFlow(*flow); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
			return
		}
		slog.Info("Server.handleFlowSteps: step deleted", "flowID", flowID, "stepID", stepID)
		writeJSONResponse(w, http.StatusOK, models.Success(flow))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFlowConnect(w http.ResponseWriter, r *http.Request, flowID string, connect bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flow, err := s.store.GetFlow(flowID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}

	var req struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if connect {
		err = editor.Connect(flow, req.Source, req.Target)
	} else {
		err = editor.Disconnect(flow, req.Source)
	}
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.store.SaveFlow(*flow); err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flow))
}

func (s *Server) handleFlowRoutes(w http.ResponseWriter, r *http.Request, flowID string) {
	flow, err := s.store.GetFlow(flowID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Source    string `json:"source"`
			Condition string `json:"condition"`
			Target    string `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := editor.AddRoute(flow, req.Source, models.Route{Condition: req.Condition, Target: req.Target}); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
	case http.MethodDelete:
		var req struct {
			Source string `json:"source"`
			Index  int    `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := editor.RemoveRoute(flow, req.Source, req.Index); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
	default:
		w.Header().Set("Allow", "POST, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.SaveFlow(*flow); err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flow))
}

func (s *Server) handleFlowStart(w http.ResponseWriter, r *http.Request, flowID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	conversationID, err := s.msgService.ValidateAndCanonicalizeRecipient(req.ConversationID)
	if err != nil {
		slog.Warn("Server.handleFlowStart: recipient validation failed", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.engine.StartFlow(context.Background(), conversationID, flowID); err != nil {
		slog.Error("Server.handleFlowStart: failed to start flow", "error", err, "flowID", flowID, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start flow"))
		return
	}

	slog.Info("Server.handleFlowStart: flow started", "flowID", flowID, "conversationID", conversationID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow started", nil))
}

// conversationHandler serves /conversations/{id}/... session controls.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/conversations/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing conversation ID"))
		return
	}
	conversationID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodGet {
		cursor, err := s.store.GetCursor(conversationID)
		if err != nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(cursor))
		return
	}

	if len(parts) == 2 && parts[1] == "restart" && r.Method == http.MethodPost {
		if err := s.engine.Restart(context.Background(), conversationID); err != nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation restarted", nil))
		return
	}

	if len(parts) == 2 && parts[1] == "handoff" && r.Method == http.MethodPost {
		if err := s.engine.EndSession(conversationID, models.OutcomeHandoff); err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation handed off", nil))
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown conversation resource"))
}
