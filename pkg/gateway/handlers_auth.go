package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lexer-cc/lexer-gateway/pkg/mail"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

type sendCodeRequest struct {
	Email string `json:"email"`
}

type sendCodeResponse struct {
	Success bool `json:"success"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyCodeResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSendCode issues a fresh login code and delivers it by email.
// Delivery failures come back as {success:false}, never as a 5xx fault.
func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email"})
		return
	}

	code, err := s.verifier.IssueCode(email)
	if err != nil {
		logging.Errorf("Failed to issue login code for %s: %v", email, err)
		writeJSON(w, http.StatusOK, sendCodeResponse{Success: false})
		return
	}

	msg := mail.Message{
		To:      email,
		From:    s.cfg.Mail.From,
		Subject: s.cfg.Mail.Subject,
		Text:    "Your authorization code is: " + code,
		HTML:    "Your authorization code is: " + code,
	}
	if err := s.mailer.Send(r.Context(), msg); err != nil {
		logging.Errorf("Login code delivery failed for %s: %v", email, err)
		writeJSON(w, http.StatusOK, sendCodeResponse{Success: false})
		return
	}

	logging.Infof("Login code sent to %s", email)
	writeJSON(w, http.StatusOK, sendCodeResponse{Success: true})
}

// handleVerifyCode redeems a login code for a bearer token.
func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if !s.verifier.VerifyCode(email, req.Code) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid code"})
		return
	}

	token, err := s.verifier.IssueToken(email)
	if err != nil {
		logging.Errorf("Failed to issue token for %s: %v", email, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to issue token"})
		return
	}

	logging.Infof("Token issued for %s", email)
	writeJSON(w, http.StatusOK, verifyCodeResponse{Token: token})
}
