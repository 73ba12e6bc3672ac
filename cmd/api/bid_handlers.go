package main

import (
	"net/http"

	"agrichain/bid"
)

type createBidRequest struct {
	BidAmount        string `json:"bidAmount"`
	DeliveryTimeDays int    `json:"deliveryTimeDays"`
	Comments         string `json:"comments"`
}

func (r createBidRequest) toParams() (bid.CreateParams, bool) {
	amount, ok := parseDecimal(r.BidAmount)
	if !ok {
		return bid.CreateParams{}, false
	}
	return bid.CreateParams{
		BidAmount:        amount,
		DeliveryTimeDays: r.DeliveryTimeDays,
		Comments:         r.Comments,
	}, true
}

func (s *Server) handleCreateFPOBid(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	var req createBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	params, ok := req.toParams()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bid amount")
		return
	}

	b, err := s.bidService.CreateFPOBid(r.Context(), principal.ID, r.PathValue("quoteID"), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFPOBidResponse(b))
}

func (s *Server) handleCreateRetailerBid(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	var req createBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	params, ok := req.toParams()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bid amount")
		return
	}

	b, err := s.bidService.CreateRetailerBid(r.Context(), principal.ID, r.PathValue("quoteID"), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRetailerBidResponse(b))
}

func (s *Server) handleAcceptFPOBid(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	b, err := s.bidService.AcceptFPOBid(r.Context(), principal.ID, r.PathValue("bidID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFPOBidResponse(b))
}

func (s *Server) handleAcceptRetailerBid(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	b, err := s.bidService.AcceptRetailerBid(r.Context(), principal.ID, r.PathValue("bidID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRetailerBidResponse(b))
}

func (s *Server) handleMyRetailerBids(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	bids, err := s.bidService.ListMyRetailerBids(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	items := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		items = append(items, toRetailerBidResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}
