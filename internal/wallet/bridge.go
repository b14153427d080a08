package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// CodeUserRejected is the bridge error code for a declined request.
const CodeUserRejected = 4001

// BridgeConfig configures bridge client behavior.
type BridgeConfig struct {
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// RequestTimeout bounds a single request, including time the user
	// spends on an approval prompt.
	RequestTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultBridgeConfig returns default bridge configuration.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		HandshakeTimeout: 5 * time.Second,
		RequestTimeout:   2 * time.Minute,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Bridge is a Wallet reached over a websocket JSON-RPC bridge.
// The connection is dialed on first use and redialed after a drop.
type Bridge struct {
	endpoint string
	config   BridgeConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the caller waiting for its response
	pending   map[uint64]pendingCall
	pendingMu sync.Mutex

	networkCh chan NetworkInfo

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBridge creates a bridge wallet for endpoint. No connection is made
// until the first request.
func NewBridge(endpoint string, config *BridgeConfig) *Bridge {
	cfg := DefaultBridgeConfig()
	if config != nil {
		cfg = *config
	}

	b := &Bridge{
		endpoint:  endpoint,
		config:    cfg,
		pending:   make(map[uint64]pendingCall),
		networkCh: make(chan NetworkInfo, 16),
		done:      make(chan struct{}),
	}

	b.wg.Add(1)
	go b.pingLoop()

	return b
}

// pendingCall is a request waiting for its response on conn.
type pendingCall struct {
	ch   chan bridgeResponse
	conn *websocket.Conn
}

var (
	_ Wallet          = (*Bridge)(nil)
	_ NetworkNotifier = (*Bridge)(nil)
)

var errBridgeClosed = errors.New("bridge closed")

// Installed reports whether the bridge answers.
func (b *Bridge) Installed(ctx context.Context) (bool, error) {
	var res struct {
		IsConnected bool `json:"isConnected"`
	}
	if err := b.call(ctx, "isConnected", nil, &res); err != nil {
		if errors.Is(err, ErrUnreachable) {
			return false, nil
		}
		return false, err
	}
	return res.IsConnected, nil
}

// RequestAccess prompts the remote key holder to share its address.
func (b *Bridge) RequestAccess(ctx context.Context) (string, error) {
	var res struct {
		Address string `json:"address"`
	}
	if err := b.call(ctx, "requestAccess", nil, &res); err != nil {
		return "", err
	}
	if res.Address == "" {
		return "", ErrUserRejected
	}
	return res.Address, nil
}

// Address returns the shared address.
func (b *Bridge) Address(ctx context.Context) (string, error) {
	var res struct {
		Address string `json:"address"`
	}
	if err := b.call(ctx, "getAddress", nil, &res); err != nil {
		return "", err
	}
	return res.Address, nil
}

// Network returns the network the remote wallet is pointed at.
func (b *Bridge) Network(ctx context.Context) (NetworkInfo, error) {
	var res NetworkInfo
	if err := b.call(ctx, "getNetwork", nil, &res); err != nil {
		return NetworkInfo{}, err
	}
	return res, nil
}

// SignTransaction asks the remote key holder to sign.
func (b *Bridge) SignTransaction(ctx context.Context, envelope string, opts SignOptions) (string, error) {
	params := map[string]interface{}{
		"transaction": envelope,
		"opts":        opts,
	}
	var res struct {
		SignedTransaction string `json:"signedTransaction"`
		SignerAddress     string `json:"signerAddress"`
	}
	if err := b.call(ctx, "signTransaction", params, &res); err != nil {
		return "", err
	}
	if res.SignedTransaction == "" {
		return "", ErrUserRejected
	}
	return res.SignedTransaction, nil
}

// NetworkChanges delivers networkChanged notifications.
func (b *Bridge) NetworkChanges() <-chan NetworkInfo {
	return b.networkCh
}

// Close closes the bridge connection.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil // Already closed
	}

	close(b.done)

	b.connMu.Lock()
	if b.conn != nil {
		b.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		b.conn.Close()
		b.conn = nil
	}
	b.connMu.Unlock()

	b.failPending(nil)
	b.wg.Wait()
	return nil
}

// ensureConn returns the live connection, dialing if needed.
func (b *Bridge) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.closed.Load() {
		return nil, errBridgeClosed
	}
	if b.conn != nil {
		return b.conn, nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: b.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, b.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: websocket dial: %v", ErrUnreachable, err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
	})

	b.conn = conn
	b.wg.Add(1)
	go b.readLoop(conn)
	return conn, nil
}

// call sends a request and waits for the matching response.
func (b *Bridge) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	conn, err := b.ensureConn(ctx)
	if err != nil {
		return err
	}

	reqID := b.requestID.Add(1)
	req := bridgeRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	ch := make(chan bridgeResponse, 1)
	b.pendingMu.Lock()
	b.pending[reqID] = pendingCall{ch: ch, conn: conn}
	b.pendingMu.Unlock()

	b.connMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
	err = conn.WriteJSON(req)
	b.connMu.Unlock()

	if err != nil {
		b.dropPending(reqID)
		return fmt.Errorf("%w: write %s: %v", ErrUnreachable, method, err)
	}

	timer := time.NewTimer(b.config.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: connection lost during %s", ErrUnreachable, method)
		}
		if resp.Error != nil {
			return resp.Error.toError()
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		b.dropPending(reqID)
		return fmt.Errorf("%w: %s timed out after %s", ErrUnreachable, method, b.config.RequestTimeout)
	case <-ctx.Done():
		b.dropPending(reqID)
		return ctx.Err()
	case <-b.done:
		return errBridgeClosed
	}
}

func (b *Bridge) dropPending(id uint64) {
	b.pendingMu.Lock()
	delete(b.pending, id)
	b.pendingMu.Unlock()
}

// failPending closes the channels of requests sent on conn, or of every
// request when conn is nil, so callers see a lost connection.
func (b *Bridge) failPending(conn *websocket.Conn) {
	b.pendingMu.Lock()
	for id, pc := range b.pending {
		if conn != nil && pc.conn != conn {
			continue
		}
		close(pc.ch)
		delete(b.pending, id)
	}
	b.pendingMu.Unlock()
}

// readLoop reads messages from one connection until it fails.
func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer b.wg.Done()

	for {
		conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			b.connMu.Lock()
			if b.conn == conn {
				b.conn = nil
			}
			b.connMu.Unlock()
			conn.Close()

			// Requests in flight on this connection cannot be answered.
			b.failPending(conn)
			return
		}
		b.handleMessage(message)
	}
}

// handleMessage dispatches a response or notification.
func (b *Bridge) handleMessage(message []byte) {
	var msg bridgeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Method == "networkChanged" {
		var info NetworkInfo
		if err := json.Unmarshal(msg.Params, &info); err != nil {
			return
		}
		select {
		case b.networkCh <- info:
		default:
		}
		return
	}

	if msg.ID == nil {
		return
	}

	b.pendingMu.Lock()
	pc, ok := b.pending[*msg.ID]
	if ok {
		delete(b.pending, *msg.ID)
	}
	b.pendingMu.Unlock()

	if ok {
		pc.ch <- bridgeResponse{Result: msg.Result, Error: msg.Error}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (b *Bridge) pingLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.connMu.Lock()
			if b.conn != nil {
				// A failed ping surfaces as a read error in readLoop.
				b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.config.WriteTimeout))
			}
			b.connMu.Unlock()
		}
	}
}

// Bridge message types

type bridgeRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type bridgeMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *BridgeError    `json:"error,omitempty"`
}

type bridgeResponse struct {
	Result json.RawMessage
	Error  *BridgeError
}

// BridgeError is an error object returned by the bridge.
type BridgeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

func (e *BridgeError) toError() error {
	if e.Code == CodeUserRejected {
		return fmt.Errorf("%w: %s", ErrUserRejected, e.Message)
	}
	return e
}
