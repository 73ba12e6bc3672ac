package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"agrichain/auth"
	"agrichain/bid"
	"agrichain/negotiation"
	"agrichain/quote"
)

type ctxKey int

const ctxKeyPrincipal ctxKey = iota

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.Account, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	LoginCheck(ctx context.Context, role auth.Role, email string) (auth.Approval, error)
	ListPending(ctx context.Context, caller auth.Principal) ([]auth.Account, error)
	SetApproval(ctx context.Context, caller auth.Principal, accountID string, approval auth.Approval) (auth.Account, error)
	LoadPrincipal(ctx context.Context, tokenString string) (auth.Principal, error)
}

type quoteService interface {
	CreateFarmerQuote(ctx context.Context, farmerID string, params quote.CreateParams) (quote.FarmerQuote, error)
	CreateFPOQuote(ctx context.Context, fpoID string, params quote.CreateParams) (quote.FPOQuote, error)
	ListFarmerQuotesByOwner(ctx context.Context, farmerID string) ([]quote.FarmerQuote, error)
	ListFPOQuotesByOwner(ctx context.Context, fpoID string) ([]quote.FPOQuote, error)
	ListOpenFarmerQuotes(ctx context.Context, excludingFPOID string) ([]quote.FarmerQuote, error)
	ListOpenFPOQuotes(ctx context.Context, excludingRetailerID string) ([]quote.FPOQuote, error)
	GetFarmerQuote(ctx context.Context, id string) (quote.FarmerQuote, error)
	RecordContractAddress(ctx context.Context, farmerID, quoteID, address string) (quote.FarmerQuote, error)
	GetContractDetails(ctx context.Context, address string) (quote.ContractDetails, error)
	DashboardForFarmer(ctx context.Context, farmerID string) (quote.FarmerDashboard, error)
	DashboardForFPO(ctx context.Context, fpoID string) (quote.FPODashboard, error)
	DashboardForRetailer(ctx context.Context, retailerID string) (quote.RetailerDashboard, error)
}

type bidService interface {
	CreateFPOBid(ctx context.Context, fpoID, quoteID string, params bid.CreateParams) (bid.FPOBid, error)
	CreateRetailerBid(ctx context.Context, retailerID, quoteID string, params bid.CreateParams) (bid.RetailerBid, error)
	AcceptFPOBid(ctx context.Context, farmerID, bidID string) (bid.FPOBid, error)
	AcceptRetailerBid(ctx context.Context, fpoID, bidID string) (bid.RetailerBid, error)
	ListMyRetailerBids(ctx context.Context, retailerID string) ([]bid.RetailerBid, error)
}

type negotiationService interface {
	Start(ctx context.Context, caller auth.Principal, ref bid.Ref) (negotiation.Thread, bool, error)
	GetDetail(ctx context.Context, caller auth.Principal, id string) (negotiation.Thread, error)
	PostCounterOffer(ctx context.Context, caller auth.Principal, id string, offer negotiation.CounterOffer) (negotiation.Thread, error)
}

// Server wires the domain services into the HTTP surface.
type Server struct {
	authService        authService
	quoteService       quoteService
	bidService         bidService
	negotiationService negotiationService
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Public.
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/{role}/register/{$}", s.handleRegister)
	mux.HandleFunc("POST /api/{role}/login-check/{$}", s.handleLoginCheck)
	mux.HandleFunc("GET /api/farmer/contract/{address}/{$}", s.handleContractDetails)

	// Admin.
	mux.HandleFunc("GET /api/admin/pending/{$}", s.auth(s.handleListPending, auth.RoleAdmin))
	mux.HandleFunc("POST /api/admin/accounts/{id}/approval/{$}", s.auth(s.handleSetApproval, auth.RoleAdmin))

	// Farmer.
	mux.HandleFunc("GET /api/farmer/dashboard/{$}", s.auth(s.handleFarmerDashboard, auth.RoleFarmer))
	mux.HandleFunc("GET /api/farmer/quotes/{$}", s.auth(s.handleListFarmerQuotes, auth.RoleFarmer))
	mux.HandleFunc("POST /api/farmer/quotes/{$}", s.auth(s.handleCreateFarmerQuote, auth.RoleFarmer))
	mux.HandleFunc("GET /api/farmer/quotes/{id}/{$}", s.auth(s.handleFarmerQuoteDetail, auth.RoleFarmer))
	mux.HandleFunc("POST /api/farmer/bids/fpo/{bidID}/accept/{$}", s.auth(s.handleAcceptFPOBid, auth.RoleFarmer))
	mux.HandleFunc("POST /api/farmer/quotes/{id}/update-contract/{$}", s.auth(s.handleUpdateContract, auth.RoleFarmer))

	// FPO.
	mux.HandleFunc("GET /api/fpo/dashboard/{$}", s.auth(s.handleFPODashboard, auth.RoleFPO))
	mux.HandleFunc("GET /api/fpo/quotes/farmer/open/{$}", s.auth(s.handleOpenFarmerQuotes, auth.RoleFPO))
	mux.HandleFunc("POST /api/fpo/quotes/farmer/{quoteID}/bids/{$}", s.auth(s.handleCreateFPOBid, auth.RoleFPO))
	mux.HandleFunc("GET /api/fpo/quotes/{$}", s.auth(s.handleListFPOQuotes, auth.RoleFPO))
	mux.HandleFunc("POST /api/fpo/quotes/{$}", s.auth(s.handleCreateFPOQuote, auth.RoleFPO))
	mux.HandleFunc("POST /api/fpo/bids/retailer/{bidID}/accept/{$}", s.auth(s.handleAcceptRetailerBid, auth.RoleFPO))

	// Retailer.
	mux.HandleFunc("GET /api/retailer/dashboard/{$}", s.auth(s.handleRetailerDashboard, auth.RoleRetailer))
	mux.HandleFunc("GET /api/retailer/quotes/fpo/open/{$}", s.auth(s.handleOpenFPOQuotes, auth.RoleRetailer))
	mux.HandleFunc("POST /api/retailer/quotes/fpo/{quoteID}/bids/{$}", s.auth(s.handleCreateRetailerBid, auth.RoleRetailer))
	mux.HandleFunc("GET /api/retailer/bids/my/{$}", s.auth(s.handleMyRetailerBids, auth.RoleRetailer))

	// Negotiation: any authenticated participant; services enforce the rest.
	mux.HandleFunc("POST /api/negotiation/start/{$}", s.auth(s.handleStartNegotiation))
	mux.HandleFunc("GET /api/negotiation/{id}/{$}", s.auth(s.handleNegotiationDetail))
	mux.HandleFunc("POST /api/negotiation/{id}/{$}", s.auth(s.handleCounterOffer))

	return mux
}

// auth wraps a handler with bearer-token authentication and an optional
// role gate. The loaded principal rides the request context.
func (s *Server) auth(next http.HandlerFunc, roles ...auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		principal, err := s.authService.LoadPrincipal(r.Context(), tokenString)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		if len(roles) > 0 {
			allowed := false
			for _, role := range roles {
				if principal.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				writeError(w, http.StatusForbidden, "role not permitted")
				return
			}
		}

		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
		next(w, r.WithContext(ctx))
	}
}

func principalFrom(r *http.Request) (auth.Principal, bool) {
	principal, ok := r.Context().Value(ctxKeyPrincipal).(auth.Principal)
	return principal, ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept out of the response.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, quote.ErrInvalidInput),
		errors.Is(err, quote.ErrBadAddress),
		errors.Is(err, bid.ErrInvalidInput),
		errors.Is(err, negotiation.ErrBadBidRef),
		errors.Is(err, negotiation.ErrInvalidOffer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNotApproved),
		errors.Is(err, auth.ErrRejected):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAdminOnly),
		errors.Is(err, quote.ErrForbidden),
		errors.Is(err, bid.ErrForbidden),
		errors.Is(err, negotiation.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrAccountNotFound),
		errors.Is(err, quote.ErrNotFound),
		errors.Is(err, bid.ErrNotFound),
		errors.Is(err, negotiation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrDuplicateAccount),
		errors.Is(err, bid.ErrQuoteNotOpen),
		errors.Is(err, bid.ErrDuplicateBid):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
