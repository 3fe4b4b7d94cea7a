package peerforward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/message"
)

// AddressBook resolves a peer's forwarding endpoint. The cluster membership
// provider (external to this package) is expected to keep it current.
type AddressBook interface {
	Address(peer PeerID) (string, bool)
}

// wireRecord is the JSON form of a message.Record sent over the wire. Payload
// is carried as-is through encoding/json; plugins that need a stricter
// contract codec that payload themselves before handing it to a processor
// requiring peer forwarding.
type wireRecord struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType message.EventType `json:"event_type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
}

type forwardRequest struct {
	PluginID string       `json:"plugin_id"`
	Records  []wireRecord `json:"records"`
}

// HTTPTransport is the default Transport: a plain net/http server
// receiving forwarded batches, and a resty client sending them, matching the
// teacher's own pattern of using bare net/http for control-plane endpoints
// rather than reaching for a heavier RPC framework.
type HTTPTransport struct {
	client    *resty.Client
	addresses AddressBook
	server    *http.Server
	inbound   chan InboundBatch
	log       log.Modular
}

// NewHTTPTransport starts listening on listenAddr and returns a Transport
// ready to forward to and receive from peers.
func NewHTTPTransport(listenAddr string, addresses AddressBook, logger log.Modular) *HTTPTransport {
	t := &HTTPTransport{
		client:    resty.New().SetTimeout(10 * time.Second),
		addresses: addresses,
		inbound:   make(chan InboundBatch, 256),
		log:       logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/peer-forward", t.handleForward)
	t.server = &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.log.Errorf("peer forwarding listener stopped: %v", err)
		}
	}()
	return t
}

func (t *HTTPTransport) handleForward(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	batch := make(message.Batch, 0, len(req.Records))
	for _, wr := range req.Records {
		var payload any
		if len(wr.Payload) > 0 {
			if err := json.Unmarshal(wr.Payload, &payload); err != nil {
				http.Error(w, fmt.Sprintf("bad record payload: %v", err), http.StatusBadRequest)
				return
			}
		}
		batch = append(batch, message.Record{
			ID:        wr.ID,
			Timestamp: wr.Timestamp,
			EventType: wr.EventType,
			Key:       wr.Key,
			Payload:   payload,
		})
	}

	select {
	case t.inbound <- InboundBatch{PluginID: req.PluginID, Batch: batch}:
		w.WriteHeader(http.StatusAccepted)
	case <-r.Context().Done():
		http.Error(w, "receiver shutting down", http.StatusServiceUnavailable)
	}
}

// Forward implements Transport.
func (t *HTTPTransport) Forward(ctx context.Context, peer PeerID, pluginID string, batch message.Batch) error {
	addr, ok := t.addresses.Address(peer)
	if !ok {
		return fmt.Errorf("no known address for peer %q", peer)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	records := make([]wireRecord, 0, len(batch))
	for _, rec := range batch {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encoding record %s for forwarding: %w", rec.ID, err)
		}
		records = append(records, wireRecord{
			ID:        rec.ID,
			Timestamp: rec.Timestamp,
			EventType: rec.EventType,
			Key:       rec.Key,
			Payload:   payload,
		})
	}

	body, err := json.Marshal(forwardRequest{PluginID: pluginID, Records: records})
	if err != nil {
		return fmt.Errorf("encoding forward request: %w", err)
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(bytes.NewReader(body)).
		Post(fmt.Sprintf("%s/peer-forward", addr))
	if err != nil {
		return fmt.Errorf("forwarding to peer %q: %w", peer, err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("peer %q rejected forwarded batch: status %d", peer, resp.StatusCode())
	}
	return nil
}

// Inbound implements Transport.
func (t *HTTPTransport) Inbound() <-chan InboundBatch { return t.inbound }

// Close implements Transport.
func (t *HTTPTransport) Close(ctx context.Context) error {
	err := t.server.Shutdown(ctx)
	close(t.inbound)
	return err
}
