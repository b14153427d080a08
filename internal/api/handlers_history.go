package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/reporting"
	"soroban-dao/internal/txn"
)

const defaultListLimit = 50

var errNotConfigured = errors.New("not configured")

func notConfigured(op, what string) error {
	return txn.NewOpError(domain.KindNotFound, domain.StateUnsigned, op, fmt.Errorf("%s %w", what, errNotConfigured))
}

type operationJSON struct {
	ID           string                `json:"id"`
	Contract     string                `json:"contract"`
	ContractID   string                `json:"contract_id"`
	Method       string                `json:"method"`
	Source       string                `json:"source"`
	State        domain.OperationState `json:"state"`
	TxHash       string                `json:"tx_hash,omitempty"`
	Ledger       uint32                `json:"ledger,omitempty"`
	ErrorKind    domain.ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    int64                 `json:"created_at"`
	UpdatedAt    int64                 `json:"updated_at"`
}

type activityJSON struct {
	EventID        string   `json:"event_id"`
	Contract       string   `json:"contract"`
	ContractID     string   `json:"contract_id"`
	Action         string   `json:"action"`
	Topics         []string `json:"topics"`
	Value          string   `json:"value"`
	TxHash         string   `json:"tx_hash"`
	Ledger         uint32   `json:"ledger"`
	LedgerClosedAt int64    `json:"ledger_closed_at"`
}

// handleJournal lists recent operations, optionally filtered by ?state=
// (comma separated).
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, r, notConfigured("journal", "operation journal"))
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var records []*domain.OperationRecord
	if raw := r.URL.Query().Get("state"); raw != "" {
		var states []domain.OperationState
		for _, st := range strings.Split(raw, ",") {
			states = append(states, domain.OperationState(strings.ToUpper(strings.TrimSpace(st))))
		}
		records, err = s.journal.ListByState(r.Context(), states...)
		if err == nil && limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}
	} else {
		records, err = s.journal.ListRecent(r.Context(), limit)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]operationJSON, len(records))
	for i, rec := range records {
		out[i] = operationJSON{
			ID:           rec.ID,
			Contract:     s.clients.Addresses.Name(rec.ContractID),
			ContractID:   rec.ContractID,
			Method:       rec.Method,
			Source:       rec.Source,
			State:        rec.State,
			TxHash:       rec.TxHash,
			Ledger:       rec.Ledger,
			ErrorKind:    rec.ErrorKind,
			ErrorMessage: rec.ErrorMessage,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"operations": out})
}

// handleActivity lists contract events. ?tx= selects one transaction,
// ?contract= (name or id) one contract, otherwise the most recent events.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		s.writeError(w, r, notConfigured("activity", "activity store"))
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	var events []*domain.ActivityEvent
	switch {
	case q.Get("tx") != "":
		events, err = s.activity.GetByTxHash(r.Context(), q.Get("tx"))
	case q.Get("contract") != "":
		events, err = s.activity.GetByContract(r.Context(), s.clients.Addresses.ID(q.Get("contract")), 0, 0)
		if err == nil && limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}
	default:
		events, err = s.activity.ListRecent(r.Context(), limit)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]activityJSON, len(events))
	for i, e := range events {
		out[i] = activityJSON{
			EventID:        e.EventID,
			Contract:       e.Contract,
			ContractID:     e.ContractID,
			Action:         e.Action(),
			Topics:         e.Topics,
			Value:          e.Value,
			TxHash:         e.TxHash,
			Ledger:         e.Ledger,
			LedgerClosedAt: e.LedgerClosedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

// Report formats served by /api/reports/{format}.
const (
	FormatMarkdown      = "md"
	FormatOperationsCSV = "operations.csv"
	FormatActivityCSV   = "activity.csv"
	FormatXLSX          = "xlsx"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeError(w, r, notConfigured("report", "report generator"))
		return
	}
	format := chi.URLParam(r, "format")

	var (
		contentType string
		filename    string
		render      func(io.Writer, *reporting.Report) error
	)
	switch format {
	case FormatMarkdown:
		contentType, filename = "text/markdown; charset=utf-8", reporting.FileMarkdown
		render = func(w io.Writer, rep *reporting.Report) error {
			_, err := io.WriteString(w, reporting.RenderMarkdown(rep))
			return err
		}
	case FormatOperationsCSV:
		contentType, filename = "text/csv", reporting.FileOperations
		render = func(w io.Writer, rep *reporting.Report) error { return reporting.WriteOperationsCSV(w, rep.Operations) }
	case FormatActivityCSV:
		contentType, filename = "text/csv", reporting.FileActivity
		render = func(w io.Writer, rep *reporting.Report) error { return reporting.WriteActivityCSV(w, rep.Activity) }
	case FormatXLSX:
		contentType, filename = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", reporting.FileWorkbook
		render = reporting.WriteXLSX
	default:
		s.writeError(w, r, badRequest("report", "unknown report format %q", format))
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.reports.Generate(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, rep); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Printf("ERROR: write report: %v", err)
	}
}
