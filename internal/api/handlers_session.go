package api

import (
	"net/http"

	"soroban-dao/internal/session"
	"soroban-dao/internal/view"
)

type sessionResponse struct {
	session.Snapshot
	Connected bool        `json:"connected"`
	Button    view.Button `json:"button"`
}

func newSessionResponse(snap session.Snapshot) sessionResponse {
	return sessionResponse{Snapshot: snap, Connected: snap.Connected(), Button: view.WalletButton(snap)}
}

// handleSession re-checks wallet availability while disconnected so the
// button tracks a wallet installed after startup.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.session.Snapshot().Connected() {
		s.session.CheckInstalled(r.Context())
	}
	s.writeJSON(w, http.StatusOK, newSessionResponse(s.session.Snapshot()))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Connect(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSessionResponse(s.session.Snapshot()))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	s.writeJSON(w, http.StatusOK, newSessionResponse(s.session.Snapshot()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.loader.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}
