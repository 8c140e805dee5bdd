package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/veridichain/veridi/internal/app/credits"
	"github.com/veridichain/veridi/internal/domain"
)

// ─── Request Plumbing ───────────────────────────────────────────────────────

// caller resolves the account acting for the request's role header.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	role, err := domain.ParseRole(r.Header.Get(RoleHeader))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Message: "Please log in first.",
			Kind:    domain.KindAuthorization.String(),
		})
		return domain.Account{}, false
	}
	acc, err := s.svc.Caller(role)
	if err != nil {
		s.writeError(w, err)
		return domain.Account{}, false
	}
	return acc, true
}

// decode reads a JSON body into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, domain.Invalid(op, "Invalid request body.", err))
		return false
	}
	return true
}

// mutation writes the result of a mutating operation.
func (s *Server) mutation(w http.ResponseWriter, res credits.Result, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		credits.Result
	}{true, res})
}

// view writes the result of a read-only view under key.
func view[T any](s *Server, w http.ResponseWriter, key string, v T, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, key: v})
}

// ─── Operations ─────────────────────────────────────────────────────────────

// handleIssue mints credits for hydrogen produced.
// POST /api/producer/issue {"amount": kg}
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !s.decode(w, r, credits.OpIssue, &req) {
		return
	}
	res, err := s.svc.Issue(r.Context(), acc, req.Amount)
	s.mutation(w, res, err)
}

// handlePurchase buys credits from the marketplace.
// POST /api/market/buy {"amount": credits}
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !s.decode(w, r, credits.OpPurchase, &req) {
		return
	}
	res, err := s.svc.Purchase(r.Context(), acc, req.Amount)
	s.mutation(w, res, err)
}

// handleSetQuota sets the caller factory's quota.
// POST /api/factory/quota {"quota": credits}
func (s *Server) handleSetQuota(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Quota int64 `json:"quota"`
	}
	if !s.decode(w, r, credits.OpSetQuota, &req) {
		return
	}
	res, err := s.svc.SetQuota(r.Context(), acc, req.Quota)
	s.mutation(w, res, err)
}

// handleFreeze freezes or unfreezes an account.
// POST /api/gov/freeze {"address": "0x…", "status": true}
func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address"`
		Status  bool   `json:"status"`
	}
	if !s.decode(w, r, credits.OpFreeze, &req) {
		return
	}
	res, err := s.svc.Freeze(r.Context(), acc, req.Address, req.Status)
	s.mutation(w, res, err)
}

// handleCertify certifies or decertifies a producer.
// POST /api/gov/certify {"producer_address": "0x…", "certified": true}
func (s *Server) handleCertify(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Producer  string `json:"producer_address"`
		Certified bool   `json:"certified"`
	}
	if !s.decode(w, r, credits.OpCertify, &req) {
		return
	}
	res, err := s.svc.CertifyProducer(r.Context(), acc, req.Producer, req.Certified)
	s.mutation(w, res, err)
}

// handleAudit runs the risk assessment.
// POST /api/gov/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Audit(r.Context(), acc)
	s.mutation(w, res, err)
}

// handleIssueCertificate issues a compliance certificate.
// POST /api/pollution/certificate {"factory_address": "0x…"}
func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Factory string `json:"factory_address"`
	}
	if !s.decode(w, r, credits.OpIssueCertificate, &req) {
		return
	}
	res, err := s.svc.IssueCertificate(r.Context(), acc, req.Factory)
	s.mutation(w, res, err)
}

// ─── Views ──────────────────────────────────────────────────────────────────

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.Balances(r.Context(), acc)
	view(s, w, "balances", v, err)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.Transactions(r.Context(), acc)
	view(s, w, "transactions", v, err)
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.Payments(r.Context(), acc)
	view(s, w, "payments", v, err)
}

func (s *Server) handleCertificates(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.Certificates(r.Context(), acc)
	view(s, w, "certificates", v, err)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.Notifications(r.Context(), acc)
	view(s, w, "notifications", v, err)
}

// handleAccountDetails shows one account.
// GET /api/gov/account-details?address=0x…
func (s *Server) handleAccountDetails(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.AccountDetails(r.Context(), acc, r.URL.Query().Get("address"))
	view(s, w, "account", v, err)
}

func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.SystemHealth(r.Context(), acc)
	view(s, w, "health", v, err)
}

// handleOperations lists recent orchestrator spans.
// GET /api/gov/operations?limit=N
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	v, err := s.svc.Operations(r.Context(), acc, limit)
	view(s, w, "operations", v, err)
}

func (s *Server) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.ComplianceReport(r.Context(), acc)
	view(s, w, "report", v, err)
}

func (s *Server) handleFactoryProgress(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.caller(w, r)
	if !ok {
		return
	}
	v, err := s.svc.FactoryProgress(r.Context(), acc)
	view(s, w, "factories", v, err)
}
