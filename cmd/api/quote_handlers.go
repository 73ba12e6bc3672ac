package main

import (
	"net/http"
	"time"

	"agrichain/quote"
)

type createQuoteRequest struct {
	ProductName  string `json:"productName"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Quantity     string `json:"quantity"`
	Unit         string `json:"unit"`
	PricePerUnit string `json:"pricePerUnit"`
	Deadline     string `json:"deadline"`
}

func (r createQuoteRequest) toParams() (quote.CreateParams, bool) {
	qty, ok := parseDecimal(r.Quantity)
	if !ok {
		return quote.CreateParams{}, false
	}
	deadline, err := time.Parse("2006-01-02", r.Deadline)
	if err != nil {
		return quote.CreateParams{}, false
	}
	params := quote.CreateParams{
		ProductName: r.ProductName,
		Category:    r.Category,
		Description: r.Description,
		Quantity:    qty,
		Unit:        r.Unit,
		Deadline:    deadline,
	}
	if r.PricePerUnit != "" {
		price, ok := parseDecimal(r.PricePerUnit)
		if !ok {
			return quote.CreateParams{}, false
		}
		params.PricePerUnit = &price
	}
	return params, true
}

func (s *Server) handleCreateFarmerQuote(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	var req createQuoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	params, ok := req.toParams()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid quantity, price, or deadline")
		return
	}

	q, err := s.quoteService.CreateFarmerQuote(r.Context(), principal.ID, params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFarmerQuoteResponse(q))
}

func (s *Server) handleCreateFPOQuote(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	var req createQuoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	params, ok := req.toParams()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid quantity, price, or deadline")
		return
	}

	q, err := s.quoteService.CreateFPOQuote(r.Context(), principal.ID, params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFPOQuoteResponse(q))
}

func (s *Server) handleListFarmerQuotes(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	quotes, err := s.quoteService.ListFarmerQuotesByOwner(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toFarmerQuoteResponses(quotes), "total": len(quotes)})
}

func (s *Server) handleListFPOQuotes(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	quotes, err := s.quoteService.ListFPOQuotesByOwner(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toFPOQuoteResponses(quotes), "total": len(quotes)})
}

func (s *Server) handleOpenFarmerQuotes(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	quotes, err := s.quoteService.ListOpenFarmerQuotes(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toFarmerQuoteResponses(quotes), "total": len(quotes)})
}

func (s *Server) handleOpenFPOQuotes(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	quotes, err := s.quoteService.ListOpenFPOQuotes(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toFPOQuoteResponses(quotes), "total": len(quotes)})
}

func (s *Server) handleFarmerQuoteDetail(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	q, err := s.quoteService.GetFarmerQuote(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if q.FarmerID != principal.ID {
		writeError(w, http.StatusForbidden, "not the quote owner")
		return
	}
	writeJSON(w, http.StatusOK, toFarmerQuoteResponse(q))
}

func (s *Server) handleUpdateContract(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	var req struct {
		ContractAddress string `json:"contract_address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	q, err := s.quoteService.RecordContractAddress(r.Context(), principal.ID, r.PathValue("id"), req.ContractAddress)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFarmerQuoteResponse(q))
}

func (s *Server) handleContractDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.quoteService.GetContractDetails(r.Context(), r.PathValue("address"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDetailsResponse(details))
}

func (s *Server) handleFarmerDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	d, err := s.quoteService.DashboardForFarmer(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"myQuotesCount":     d.MyQuotesCount,
		"bidsReceivedCount": d.BidsReceivedCount,
		"activeQuotes":      d.ActiveQuotes,
		"awardedQuotes":     d.AwardedQuotes,
	})
}

func (s *Server) handleFPODashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	d, err := s.quoteService.DashboardForFPO(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"availableFarmerQuotesCount": d.AvailableFarmerQuotesCount,
		"myBidsCount":                d.MyBidsCount,
		"myQuotesCount":              d.MyQuotesCount,
		"retailerBidsCount":          d.RetailerBidsCount,
	})
}

func (s *Server) handleRetailerDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r)

	d, err := s.quoteService.DashboardForRetailer(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"availableFpoQuotesCount": d.AvailableFPOQuotesCount,
		"myBidsCount":             d.MyBidsCount,
		"acceptedBidsCount":       d.AcceptedBidsCount,
	})
}
