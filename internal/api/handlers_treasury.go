package api

import (
	"net/http"

	"soroban-dao/internal/view"
)

func (s *Server) handleTreasuryPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.loader.TreasuryPage(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.clients.Treasury.GetBalance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":         view.FormatStroops(balance),
		"balance_stroops": balance,
	})
}

func (s *Server) handleSigners(w http.ResponseWriter, r *http.Request) {
	signers, err := s.clients.Treasury.GetSigners(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"signers": signers})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "get_transaction")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.clients.Treasury.GetTransaction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": tx,
		"row":         view.NewTxRow(tx),
	})
}

type depositRequest struct {
	Amount int64 `json:"amount"` // stroops
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, "deposit", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.clients.Treasury.Deposit(r.Context(), req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"receipt": receiptBody(receipt)})
}

type withdrawalRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"` // stroops
	Memo   string `json:"memo"`
}

func (s *Server) handleProposeWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decodeBody(r, "propose_withdrawal", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, receipt, err := s.clients.Treasury.ProposeWithdrawal(r.Context(), req.To, req.Amount, req.Memo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "receipt": receiptBody(receipt)})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "approve")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.clients.Treasury.Approve(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"receipt": receiptBody(receipt)})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "execute")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.clients.Treasury.Execute(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"receipt": receiptBody(receipt)})
}
