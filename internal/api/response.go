package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/txn"
)

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Kind          domain.ErrorKind      `json:"kind"`
	Message       string                `json:"message"`
	State         domain.OperationState `json:"state,omitempty"`
	Op            string                `json:"op,omitempty"`
	TxHash        string                `json:"tx_hash,omitempty"`
	Indeterminate bool                  `json:"indeterminate"`
	ContractError *ContractErrorBody    `json:"contract_error,omitempty"`
}

// ContractErrorBody describes a contract error code.
type ContractErrorBody struct {
	Code uint32 `json:"code"`
	Name string `json:"name,omitempty"`
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindNotConnected:
		return http.StatusUnauthorized
	case domain.KindUserRejectedSignature:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindWrongNetwork:
		return http.StatusConflict
	case domain.KindSimulationRejected, domain.KindSubmissionRejected:
		return http.StatusUnprocessableEntity
	case domain.KindNetworkUnreachable:
		return http.StatusBadGateway
	case domain.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// NewErrorBody describes err for a client.
func NewErrorBody(err error) ErrorBody {
	body := ErrorBody{Kind: txn.Classify(err), Message: err.Error()}
	var opErr *txn.OpError
	if errors.As(err, &opErr) {
		body.State = opErr.State
		body.Op = opErr.Op
		body.TxHash = opErr.TxHash
		body.Indeterminate = opErr.Indeterminate()
	}
	var ce *txn.ContractError
	if errors.As(err, &ce) {
		body.ContractError = &ContractErrorBody{Code: ce.Code, Name: ce.Name}
	}
	return body
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("ERROR: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := NewErrorBody(err)
	status := StatusFor(body.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("ERROR: %s %s: %v", r.Method, r.URL.Path, err)
	}
	s.writeJSON(w, status, map[string]interface{}{"error": body})
}

func badRequest(op, format string, args ...interface{}) error {
	return txn.NewOpError(domain.KindInvalidInput, domain.StateUnsigned, op, fmt.Errorf(format, args...))
}

func decodeBody(r *http.Request, op string, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(op, "invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, op string) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest(op, "invalid id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("query", "invalid %s %q", name, raw)
	}
	return n, nil
}

// ReceiptBody is the JSON form of a confirmed operation.
type ReceiptBody struct {
	State       domain.OperationState `json:"state"`
	TxHash      string                `json:"tx_hash"`
	Ledger      uint32                `json:"ledger"`
	OperationID string                `json:"operation_id,omitempty"`
}

func receiptBody(rc *txn.Receipt) *ReceiptBody {
	if rc == nil {
		return nil
	}
	return &ReceiptBody{State: rc.State, TxHash: rc.TxHash, Ledger: rc.Ledger, OperationID: rc.OperationID}
}
