package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// WSConfig configures the account subscriber.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default subscriber configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Subscriber keeps a Snapshot fresh by subscribing to account change
// notifications over a websocket. Each watched key gets its own
// subscription; updates are decoded and applied to the snapshot directly.
type Subscriber struct {
	endpoint string
	config   WSConfig
	snapshot *Snapshot
	log      zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the watched key
	subs   map[int64]domain.PubKey
	subsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewSubscriber connects to the endpoint and starts the read and ping loops.
func NewSubscriber(ctx context.Context, endpoint string, snapshot *Snapshot, log zerolog.Logger, config *WSConfig) (*Subscriber, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	s := &Subscriber{
		endpoint:    endpoint,
		config:      cfg,
		snapshot:    snapshot,
		log:         log.With().Str("component", "feed_ws").Logger(),
		subs:        make(map[int64]domain.PubKey),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the websocket connection.
func (s *Subscriber) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Watch subscribes to change notifications for one account key. Updates
// flow into the snapshot until Close.
func (s *Subscriber) Watch(ctx context.Context, key domain.PubKey) error {
	subID, err := s.subscribeAccount(ctx, key)
	if err != nil {
		return err
	}

	s.subsMu.Lock()
	s.subs[subID] = key
	s.subsMu.Unlock()
	return nil
}

// WatchAll subscribes to every key in the list, stopping at the first error.
func (s *Subscriber) WatchAll(ctx context.Context, keys []domain.PubKey) error {
	for _, key := range keys {
		if err := s.Watch(ctx, key); err != nil {
			return fmt.Errorf("watch %s: %w", accounts.KeyString(key), err)
		}
	}
	return nil
}

// Close closes the websocket connection and stops all loops.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.pendingSubsMu.Lock()
	for id, ch := range s.pendingSubs {
		close(ch)
		delete(s.pendingSubs, id)
	}
	s.pendingSubsMu.Unlock()

	s.wg.Wait()
	return nil
}

// subscribeAccount issues one accountSubscribe request and waits for the
// subscription ID.
func (s *Subscriber) subscribeAccount(ctx context.Context, key domain.PubKey) (int64, error) {
	if s.closed.Load() {
		return 0, fmt.Errorf("subscriber closed")
	}

	reqID := s.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []any{
			accounts.KeyString(key),
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	s.pendingSubsMu.Lock()
	s.pendingSubs[reqID] = confirmCh
	s.pendingSubsMu.Unlock()

	s.connMu.Lock()
	if s.conn == nil {
		s.connMu.Unlock()
		s.dropPending(reqID)
		return 0, fmt.Errorf("not connected")
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	err := s.conn.WriteJSON(req)
	s.connMu.Unlock()

	if err != nil {
		s.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		s.dropPending(reqID)
		return 0, fmt.Errorf("subscription timeout after 30s")
	case <-s.done:
		return 0, fmt.Errorf("subscriber closed")
	case <-ctx.Done():
		s.dropPending(reqID)
		return 0, ctx.Err()
	}
}

func (s *Subscriber) dropPending(reqID uint64) {
	s.pendingSubsMu.Lock()
	delete(s.pendingSubs, reqID)
	s.pendingSubsMu.Unlock()
}

// readLoop reads messages and applies account updates to the snapshot.
func (s *Subscriber) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes every watched key.
func (s *Subscriber) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("reconnect failed, will retry on next read error")
		return
	}

	s.resubscribeAll()
}

// resubscribeAll re-issues subscriptions for every watched key. The old
// subscription IDs are invalid after a reconnect.
func (s *Subscriber) resubscribeAll() {
	s.subsMu.RLock()
	keys := make(map[int64]domain.PubKey, len(s.subs))
	for id, key := range s.subs {
		keys[id] = key
	}
	s.subsMu.RUnlock()

	for oldSubID, key := range keys {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := s.subscribeAccount(ctx, key)
		cancel()

		if err != nil {
			s.log.Warn().Err(err).Str("key", accounts.KeyString(key)).Msg("resubscribe failed")
			continue
		}

		s.subsMu.Lock()
		delete(s.subs, oldSubID)
		s.subs[newSubID] = key
		s.subsMu.Unlock()
	}
}

// handleMessage processes one incoming websocket message.
func (s *Subscriber) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		s.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "accountNotification" {
		s.handleAccountNotification(&notif)
		return
	}

	var errResp struct {
		ID    uint64 `json:"id"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		s.log.Warn().
			Int("code", errResp.Error.Code).
			Str("message", errResp.Error.Message).
			Msg("websocket error response")
	}
}

// handleSubscribeResponse handles subscription confirmation.
func (s *Subscriber) handleSubscribeResponse(resp *wsSubscribeResponse) {
	s.pendingSubsMu.Lock()
	ch, ok := s.pendingSubs[resp.ID]
	if ok {
		delete(s.pendingSubs, resp.ID)
	}
	s.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleAccountNotification decodes an account update and stores it.
func (s *Subscriber) handleAccountNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	s.subsMu.RLock()
	key, ok := s.subs[notif.Params.Subscription]
	s.subsMu.RUnlock()
	if !ok {
		return
	}

	value := notif.Params.Result.Value
	if value == nil {
		// Account closed on chain.
		s.snapshot.Delete(key)
		return
	}

	acc, err := decodeAccount(key, value)
	if err != nil {
		s.log.Warn().Err(err).Str("key", accounts.KeyString(key)).Msg("bad account notification")
		return
	}
	s.snapshot.Set(acc)
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *Subscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// Write errors here surface as read errors, which trigger
				// the reconnect path.
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

// Websocket message types.

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext    `json:"context"`
	Value   *accountValue `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}
