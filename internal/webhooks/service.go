package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
	"github.com/tarlanskakov/patenr-ali-sh/internal/events"
	"go.uber.org/zap"
)

// ErrInvalidSubscription is returned by Subscribe for unusable requests.
var ErrInvalidSubscription = errors.New("invalid webhook subscription")

// Delivery headers.
const (
	HeaderSignature = "X-PatentChain-Signature"
	HeaderEvent     = "X-PatentChain-Event"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Service manages webhook subscriptions and event dispatching.
type Service struct {
	store      Store
	httpClient *http.Client
	onMetrics  MetricsRecorder
	logger     *zap.Logger

	// delays[i] is the wait before attempt i+1.
	delays []time.Duration
	wg     sync.WaitGroup
}

// NewService creates a new webhook Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		delays:     []time.Duration{0, 1 * time.Second, 5 * time.Second},
	}
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// SetHTTPClient replaces the client used for deliveries.
func (s *Service) SetHTTPClient(hc *http.Client) {
	s.httpClient = hc
}

// Subscribe creates a subscription with a generated HMAC secret. The secret is
// only ever returned here.
func (s *Service) Subscribe(ctx context.Context, req *CreateSubscriptionRequest) (*Subscription, string, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidSubscription)
	}
	if len(req.Events) == 0 {
		return nil, "", fmt.Errorf("%w: at least one event is required", ErrInvalidSubscription)
	}
	for _, e := range req.Events {
		if !slices.Contains(Events, e) {
			return nil, "", fmt.Errorf("%w: unknown event %q", ErrInvalidSubscription, e)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	sub := &Subscription{
		ID:        uuid.New(),
		URL:       req.URL,
		Events:    slices.Compact(slices.Sorted(slices.Values(req.Events))),
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, "", fmt.Errorf("create subscription: %w", err)
	}
	s.logger.Info("webhook subscription created",
		zap.String("id", sub.ID.String()),
		zap.String("url", sub.URL),
		zap.Strings("events", sub.Events),
	)
	return sub, secret, nil
}

// Unsubscribe deletes a subscription.
func (s *Service) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// Get returns one subscription.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, id)
}

// List returns all subscriptions.
func (s *Service) List(ctx context.Context) ([]*Subscription, error) {
	return s.store.List(ctx)
}

// Deliveries returns the most recent delivery attempts.
func (s *Service) Deliveries(ctx context.Context, limit int) ([]*Delivery, error) {
	return s.store.Deliveries(ctx, limit)
}

// Dispatch fans out an event to all matching subscriptions. Deliveries run in
// the background and stop when ctx ends.
func (s *Service) Dispatch(ctx context.Context, eventType string, data any) {
	subs, err := s.store.ListByEvent(ctx, eventType)
	if err != nil {
		s.logger.Error("webhook: list subscribers", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}

	for _, sub := range subs {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deliver(ctx, sub, event, body)
		}()
	}
}

// Run dispatches a block.appended event for every block published on bus
// until ctx ends.
func (s *Service) Run(ctx context.Context, bus *events.Bus) {
	blocks, cancel := bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-blocks:
			if !ok {
				return
			}
			s.Dispatch(ctx, EventBlockAppended, blockData(b))
		}
	}
}

// Wait blocks until in-flight deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func blockData(b chain.Block) map[string]any {
	return map[string]any{
		"index":         b.Index,
		"hash":          b.Hash,
		"previous_hash": b.PreviousHash,
		"nonce":         b.Nonce,
		"patent_id":     b.Payload.Get("patent_id"),
		"timestamp":     chain.FormatTimestamp(b.Timestamp),
	}
}

// deliver sends the event to a single subscription with retries.
func (s *Service) deliver(ctx context.Context, sub *Subscription, event Event, body []byte) {
	signature := signPayload(body, sub.Secret)

	for attempt := 1; attempt <= len(s.delays); attempt++ {
		if wait := s.delays[attempt-1]; wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		success, statusCode, errMsg := s.doDelivery(ctx, sub.URL, event.Type, body, signature)

		d := &Delivery{
			SubscriptionID: sub.ID,
			EventID:        event.ID,
			EventType:      event.Type,
			StatusCode:     statusCode,
			Attempt:        attempt,
			Success:        success,
			ErrorMessage:   errMsg,
			DeliveredAt:    time.Now().UTC(),
		}
		if err := s.store.RecordDelivery(ctx, d); err != nil {
			s.logger.Warn("webhook: record delivery", zap.Error(err))
		}
		if s.onMetrics != nil {
			s.onMetrics(success)
		}
		if success {
			return
		}

		s.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.String("event", event.Type),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (s *Service) doDelivery(ctx context.Context, url, eventType string, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, eventType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// signPayload computes the HMAC-SHA256 signature receivers check.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signPayload(body, secret)), []byte(signature))
}

// generateSecret creates a random 32-byte hex-encoded secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
