package api

import (
	"net/http"

	"soroban-dao/internal/contracts"
)

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.clients.Governance.GetMembers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	cards, err := s.loader.Proposals(r.Context(), s.currentLedger(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": cards})
}

func (s *Server) handleProposalDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "get_proposal")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.loader.ProposalDetail(r.Context(), id, s.currentLedger(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, card)
}

type proposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Amount      int64  `json:"amount"` // stroops
	Target      string `json:"target"`
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := decodeBody(r, "create_proposal", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, receipt, err := s.clients.Governance.CreateProposal(r.Context(), contracts.ProposalInput{
		Title:       req.Title,
		Description: req.Description,
		Action:      req.Action,
		Amount:      req.Amount,
		Target:      req.Target,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "receipt": receiptBody(receipt)})
}

type voteRequest struct {
	Support *bool `json:"support"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "vote")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req voteRequest
	if err := decodeBody(r, "vote", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Support == nil {
		s.writeError(w, r, badRequest("vote", "support is required"))
		return
	}
	receipt, err := s.clients.Governance.Vote(r.Context(), id, *req.Support)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"receipt": receiptBody(receipt)})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "finalize")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status, receipt, err := s.clients.Governance.Finalize(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": status, "receipt": receiptBody(receipt)})
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "execute")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.clients.Governance.ExecuteProposal(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"receipt": receiptBody(receipt)})
}
