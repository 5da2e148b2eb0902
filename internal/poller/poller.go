// Package poller clears carts once the payment provider reports a completed
// checkout.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	Topic   = "checkout-completed"
	GroupID = "storefront"

	retryDelay = time.Second
)

var ErrMissingSessionID = errors.New("missing or invalid session_id")

// Clearer empties the cart of a session.
type Clearer interface {
	Clear(ctx context.Context, sessionID string)
}

// Completion is published by the payment side when a checkout is paid.
type Completion struct {
	SessionID  string `json:"session_id"`
	CheckoutID string `json:"checkout_id"`
}

type Poller struct {
	clearer Clearer
	reader  *kafka.Reader
	logger  *zap.Logger
}

func NewPoller(clearer Clearer, logger *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{clearer: clearer, reader: reader, logger: logger}
}

// Run consumes completions until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("checkout completion consumer started", zap.String("topic", Topic))
	for {
		m, err := p.reader.ReadMessage(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			p.logger.Warn("error reading message", zap.Error(err))
			select {
			case <-time.After(retryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := p.handle(ctx, m.Value); err != nil {
			p.logger.Warn("completion message skipped",
				zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (p *Poller) Close() error {
	if err := p.reader.Close(); err != nil {
		return fmt.Errorf("close reader failed: %w", err)
	}
	return nil
}

func (p *Poller) handle(ctx context.Context, value []byte) error {
	var c Completion
	if err := json.Unmarshal(value, &c); err != nil {
		return fmt.Errorf("parse completion failed: %w", err)
	}
	if c.SessionID == "" {
		return ErrMissingSessionID
	}

	p.clearer.Clear(ctx, c.SessionID)
	p.logger.Info("cart cleared after checkout",
		zap.String("session_id", c.SessionID), zap.String("checkout_id", c.CheckoutID))
	return nil
}
