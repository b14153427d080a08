package soroban

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64                 `json:"id"`
			Method string                 `json:"method"`
			Params map[string]interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetNetwork(t *testing.T) {
	server := rpcServer(t, "getNetwork", map[string]interface{}{
		"passphrase":      "Test SDF Network ; September 2015",
		"protocolVersion": 22,
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	network, err := client.GetNetwork(context.Background())
	if err != nil {
		t.Fatalf("GetNetwork: %v", err)
	}
	if network.Passphrase != "Test SDF Network ; September 2015" {
		t.Errorf("unexpected passphrase: %s", network.Passphrase)
	}
	if network.ProtocolVersion != 22 {
		t.Errorf("expected protocol 22, got %d", network.ProtocolVersion)
	}
}

func TestHTTPClient_GetAccount(t *testing.T) {
	server := rpcServer(t, "getAccount", map[string]interface{}{
		"id":       "GABC",
		"sequence": "4294967297",
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	acc, err := client.GetAccount(context.Background(), "GABC")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc == nil {
		t.Fatal("expected account, got nil")
	}
	if acc.Sequence != 4294967297 {
		t.Errorf("expected sequence 4294967297, got %d", acc.Sequence)
	}
}

func TestHTTPClient_GetAccount_NotFound(t *testing.T) {
	server := rpcServer(t, "getAccount", nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	acc, err := client.GetAccount(context.Background(), "GMISSING")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc != nil {
		t.Errorf("expected nil for not found, got %+v", acc)
	}
}

func TestHTTPClient_SimulateTransaction(t *testing.T) {
	server := rpcServer(t, "simulateTransaction", map[string]interface{}{
		"latestLedger":    int64(5000),
		"minResourceFee":  "12345",
		"transactionData": "AAAA",
		"results": []map[string]interface{}{
			{"auth": []string{"auth1"}, "xdr": "eyJvayI6dHJ1ZX0="},
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sim, err := client.SimulateTransaction(context.Background(), "ZW52")
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if sim.Failed() {
		t.Fatalf("unexpected simulation error: %s", sim.Error)
	}
	if sim.MinResourceFee != 12345 {
		t.Errorf("expected fee 12345, got %d", sim.MinResourceFee)
	}
	if sim.ReturnValue() != "eyJvayI6dHJ1ZX0=" {
		t.Errorf("unexpected return value: %s", sim.ReturnValue())
	}
	if len(sim.Results[0].Auth) != 1 {
		t.Errorf("expected 1 auth entry, got %d", len(sim.Results[0].Auth))
	}
}

func TestHTTPClient_SendAndGetTransaction(t *testing.T) {
	send := rpcServer(t, "sendTransaction", map[string]interface{}{
		"status":       "PENDING",
		"hash":         "abcd",
		"latestLedger": int64(10),
	})
	defer send.Close()

	client := NewHTTPClient(send.URL)
	res, err := client.SendTransaction(context.Background(), "ZW52")
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if res.Status != SendPending || res.Hash != "abcd" {
		t.Errorf("unexpected send result: %+v", res)
	}

	get := rpcServer(t, "getTransaction", map[string]interface{}{
		"status":       "SUCCESS",
		"latestLedger": int64(12),
		"ledger":       int64(11),
		"returnValue":  "MQ==",
	})
	defer get.Close()

	client = NewHTTPClient(get.URL)
	tx, err := client.GetTransaction(context.Background(), "abcd")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.Status != TxSuccess || tx.Ledger != 11 {
		t.Errorf("unexpected tx result: %+v", tx)
	}
}

func TestHTTPClient_GetEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64        `json:"id"`
			Params EventsRequest `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if len(req.Params.Filters) != 1 || req.Params.Filters[0].ContractIDs[0] != "CTREASURY" {
			t.Errorf("unexpected filters: %+v", req.Params.Filters)
		}
		if req.Params.Pagination == nil || req.Params.Pagination.Cursor != "c1" {
			t.Errorf("expected cursor c1")
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"latestLedger": int64(20),
				"cursor":       "c2",
				"events": []map[string]interface{}{
					{"type": "contract", "ledger": 19, "contractId": "CTREASURY", "id": "e1", "topic": []string{"dA=="}, "value": "MQ==", "txHash": "h1"},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	res, err := client.GetEvents(context.Background(), EventsRequest{
		Filters:    []EventFilter{{Type: "contract", ContractIDs: []string{"CTREASURY"}}},
		Pagination: &Pagination{Cursor: "c1", Limit: 10},
	})
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].TxHash != "h1" {
		t.Fatalf("unexpected events: %+v", res.Events)
	}
	if res.Cursor != "c2" {
		t.Errorf("expected cursor c2, got %s", res.Cursor)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"id": "ab", "sequence": 999, "protocolVersion": 22},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	ledger, err := client.GetLatestLedger(context.Background())
	if err != nil {
		t.Fatalf("GetLatestLedger: %v", err)
	}
	if ledger.Sequence != 999 {
		t.Errorf("expected sequence 999, got %d", ledger.Sequence)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(1),
		WithRetryDelay(time.Millisecond),
	)

	_, err := client.GetHealth(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "invalid parameters",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.GetHealth(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if errors.Is(err, ErrUnreachable) {
		t.Error("RPC errors must not be reported as unreachable")
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetLatestLedger(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
