package api

import (
	"net/http"
	"time"

	"soroban-dao/internal/view"
)

func (s *Server) handleVaultStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.clients.Vault.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":        stats,
		"total_locked": view.FormatStroops(stats.TotalLocked),
	})
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "get_lock")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lock, err := s.clients.Vault.GetLock(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"lock":       lock,
		"unlockable": lock.Unlockable(uint64(s.now().Unix())),
	})
}

// handleGetVesting returns a schedule projected at ?at= (unix seconds),
// defaulting to now.
func (s *Server) handleGetVesting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "get_vesting")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	at := s.now()
	if _, ok := r.URL.Query()["at"]; ok {
		secs, err := queryInt(r, "at", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		at = time.Unix(int64(secs), 0)
	}
	p, err := s.clients.Vault.ProjectVesting(r.Context(), id, at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedule":          p.Schedule,
		"at":                p.At.Unix(),
		"vested":            p.Vested,
		"claimable":         p.Claimable,
		"claimable_display": view.FormatStroops(p.Claimable),
	})
}

type lockRequest struct {
	Amount          int64  `json:"amount"` // stroops
	DurationSeconds int64  `json:"duration_seconds"`
	Memo            string `json:"memo"`
}

func (s *Server) handleLockTokens(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decodeBody(r, "lock_tokens", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, receipt, err := s.clients.Vault.LockTokens(r.Context(), req.Amount, time.Duration(req.DurationSeconds)*time.Second, req.Memo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "receipt": receiptBody(receipt)})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "claim")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, receipt, err := s.clients.Vault.Claim(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount, "receipt": receiptBody(receipt)})
}

func (s *Server) handleApproveEmergency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "approve_emergency")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, receipt, err := s.clients.Vault.ApproveEmergency(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": count, "receipt": receiptBody(receipt)})
}

func (s *Server) handleEmergencyUnlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "emergency_unlock")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, receipt, err := s.clients.Vault.EmergencyUnlock(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount, "receipt": receiptBody(receipt)})
}

func (s *Server) handleClaimVested(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "claim_vested")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, receipt, err := s.clients.Vault.ClaimVested(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount, "receipt": receiptBody(receipt)})
}
