package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type mockKafka struct {
	mock.Mock
}

func (m *mockKafka) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

func newTestProducer(k Publisher) *Producer {
	return NewProducer(k, domain.DefaultTaxRate, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "storefront.session.updated", TopicSessionUpdated)
	assert.Equal(t, "storefront.session.cleared", TopicSessionCleared)
}

func TestPublishUpdated(t *testing.T) {
	k := &mockKafka{}
	var published *pkgkafka.Event
	k.On("Publish", mock.Anything, TopicSessionUpdated, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).(*pkgkafka.Event) }).
		Return(nil).Once()

	ctx := logger.WithTab(context.Background(), "dev-1", "tab-1")
	ctx = logger.WithCorrelationID(ctx, "corr-1")

	state := domain.SessionState{
		Identity: "u1",
		Wishlist: []domain.WishlistEntry{{ID: "w1"}},
		Cart:     []domain.CartEntry{{ID: "c1", Qty: 2, Price: 10}},
	}
	require.NoError(t, newTestProducer(k).PublishUpdated(ctx, state))
	k.AssertExpectations(t)

	require.NotNil(t, published)
	assert.Equal(t, pkgkafka.Aggregate{Type: AggregateTypeSession, ID: "u1"}, published.Aggregate)
	assert.Equal(t, "corr-1", published.CorrelationID)
	assert.Equal(t, map[string]string{HeaderDeviceID: "dev-1", HeaderTabID: "tab-1"}, published.Headers)

	var data SessionUpdatedData
	require.NoError(t, json.Unmarshal(published.Data, &data))
	assert.Equal(t, []string{"w1"}, data.Wishlist)
	assert.Equal(t, []CartLineData{{ID: "c1", Qty: 2, Price: 10}}, data.Cart)
	assert.Equal(t, 2, data.ItemCount)
	assert.Equal(t, 24.0, data.Totals.Total)
}

func TestPublishCleared(t *testing.T) {
	k := &mockKafka{}
	k.On("Publish", mock.Anything, TopicSessionCleared, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		return e.Aggregate.ID == "u1" && e.Type == TopicSessionCleared
	})).Return(nil).Once()

	require.NoError(t, newTestProducer(k).PublishCleared(context.Background(), "u1"))
	k.AssertExpectations(t)
}

func TestPublish_OmitsTabHeadersOutsideRequests(t *testing.T) {
	k := &mockKafka{}
	k.On("Publish", mock.Anything, TopicSessionCleared, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		return e.Headers == nil && e.CorrelationID == ""
	})).Return(nil).Once()

	require.NoError(t, newTestProducer(k).PublishCleared(context.Background(), "u1"))
	k.AssertExpectations(t)
}

func TestPublish_WrapsError(t *testing.T) {
	k := &mockKafka{}
	k.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := newTestProducer(k).PublishCleared(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish storefront.session.cleared event")
}
