package main

import (
	"net/http"

	"agrichain/bid"
	"agrichain/negotiation"
)

func (s *Server) handleStartNegotiation(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var req struct {
		ContentType string `json:"content_type"`
		ObjectID    string `json:"object_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	kind, err := bid.ParseKind(req.ContentType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported bid content type")
		return
	}
	if req.ObjectID == "" {
		writeError(w, http.StatusBadRequest, "object_id is required")
		return
	}

	thread, created, err := s.negotiationService.Start(r.Context(), principal, bid.Ref{Kind: kind, ID: req.ObjectID})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toThreadResponse(thread))
}

func (s *Server) handleNegotiationDetail(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	thread, err := s.negotiationService.GetDetail(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toThreadResponse(thread))
}

func (s *Server) handleCounterOffer(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var req struct {
		Message                 string `json:"message"`
		CounterAmount           string `json:"counter_amount"`
		CounterDeliveryTimeDays int    `json:"counter_delivery_time_days"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	amount, ok := parseDecimal(req.CounterAmount)
	if !ok {
		s.writeServiceError(w, negotiation.ErrInvalidOffer)
		return
	}

	thread, err := s.negotiationService.PostCounterOffer(r.Context(), principal, r.PathValue("id"), negotiation.CounterOffer{
		Message:                 req.Message,
		CounterAmount:           amount,
		CounterDeliveryTimeDays: req.CounterDeliveryTimeDays,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toThreadResponse(thread))
}
