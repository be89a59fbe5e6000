package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for session events.
var (
	TopicSessionUpdated = pkgkafka.Topic("session", "updated")
	TopicSessionCleared = pkgkafka.Topic("session", "cleared")
)

const (
	AggregateTypeSession = "session"
	SourceStorefront     = "storefront-service"
)

// Record headers naming the tab that caused an event.
const (
	HeaderDeviceID = "device_id"
	HeaderTabID    = "tab_id"
)

// SessionUpdatedData is the payload of a session.updated event.
type SessionUpdatedData struct {
	Identity  string         `json:"identity"`
	Wishlist  []string       `json:"wishlist"`
	Cart      []CartLineData `json:"cart"`
	ItemCount int            `json:"item_count"`
	Totals    domain.Totals  `json:"totals"`
}

// CartLineData is one cart line within session events.
type CartLineData struct {
	ID    string  `json:"id"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// SessionClearedData is the payload of a session.cleared event.
type SessionClearedData struct {
	Identity string `json:"identity"`
}

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes session events to Kafka.
type Producer struct {
	kafka   Publisher
	taxRate float64
	logger  *slog.Logger
}

// NewProducer creates a producer whose update events carry totals at taxRate.
func NewProducer(kafka Publisher, taxRate float64, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, taxRate: taxRate, logger: logger}
}

// PublishUpdated publishes a session.updated event.
func (p *Producer) PublishUpdated(ctx context.Context, state domain.SessionState) error {
	wishlist := make([]string, len(state.Wishlist))
	for i, e := range state.Wishlist {
		wishlist[i] = e.ID
	}
	cart := make([]CartLineData, len(state.Cart))
	for i, e := range state.Cart {
		cart[i] = CartLineData{ID: e.ID, Qty: e.Qty, Price: e.Price}
	}
	totals := state.Totals(p.taxRate)

	data := SessionUpdatedData{
		Identity:  string(state.Identity),
		Wishlist:  wishlist,
		Cart:      cart,
		ItemCount: totals.ItemCount,
		Totals:    totals,
	}

	if err := p.publish(ctx, TopicSessionUpdated, string(state.Identity), data); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "published session.updated event",
		slog.String("identity", string(state.Identity)),
		slog.Int("item_count", totals.ItemCount),
	)
	return nil
}

// PublishCleared publishes a session.cleared event.
func (p *Producer) PublishCleared(ctx context.Context, id domain.Identity) error {
	data := SessionClearedData{Identity: string(id)}

	if err := p.publish(ctx, TopicSessionCleared, string(id), data); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "published session.cleared event", slog.String("identity", string(id)))
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	deviceID, tabID := logger.TabFromContext(ctx)
	event, err := pkgkafka.NewEvent(topic,
		pkgkafka.Aggregate{Type: AggregateTypeSession, ID: aggregateID},
		SourceStorefront, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)),
		pkgkafka.WithHeader(HeaderDeviceID, deviceID),
		pkgkafka.WithHeader(HeaderTabID, tabID),
	)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
