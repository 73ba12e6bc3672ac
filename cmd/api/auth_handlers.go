package main

import (
	"net/http"

	"agrichain/auth"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   result.Token,
		"account": toAccountResponse(result.Account),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// The role in the path wins over anything in the body.
	req.Role = auth.Role(r.PathValue("role"))

	acct, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func (s *Server) handleLoginCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	approval, err := s.authService.LoginCheck(r.Context(), auth.Role(r.PathValue("role")), req.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"approval": string(approval)})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	accounts, err := s.authService.ListPending(r.Context(), principal)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var req struct {
		Approval string `json:"approval"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	acct, err := s.authService.SetApproval(r.Context(), principal, r.PathValue("id"), auth.Approval(req.Approval))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}
