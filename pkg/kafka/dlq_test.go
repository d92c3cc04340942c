package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_PublishAddsProvenanceHeaders(t *testing.T) {
	w := &fakeWriter{}
	d := NewDLQProducerWithWriter(w, discardLogger())

	orig := kafka.Message{
		Topic:     "marketplace.payment.completed",
		Partition: 2,
		Offset:    41,
		Key:       []byte("order-1"),
		Value:     []byte(`{"event_id":"e"}`),
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("payment.completed")}},
	}

	require.NoError(t, d.Publish(context.Background(), orig, errBoom, "reconciler"))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "marketplace.dlq.marketplace.payment.completed", msg.Topic)
	assert.Equal(t, orig.Key, msg.Key)
	assert.Equal(t, orig.Value, msg.Value)

	h := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "payment.completed", h.Get("event_type"))
	assert.Equal(t, "2", h.Get("dlq.original_partition"))
	assert.Equal(t, "41", h.Get("dlq.original_offset"))
	assert.Equal(t, "reconciler", h.Get("dlq.consumer_group"))
	assert.Equal(t, "boom", h.Get("dlq.error"))
}

func TestDLQProducer_WriteError(t *testing.T) {
	d := NewDLQProducerWithWriter(&fakeWriter{err: errBoom}, discardLogger())

	err := d.Publish(context.Background(), kafka.Message{Topic: "t"}, nil, "g")
	assert.ErrorIs(t, err, errBoom)
}
