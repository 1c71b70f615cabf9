package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fishability-service/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("req-1"),
		Value:     []byte(`{"lat":45.9,"lon":6.1}`),
		Topic:     "fishability-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "client", Value: []byte("mobile")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("req-1"), raw.Key)
	assert.JSONEq(t, `{"lat":45.9,"lon":6.1}`, string(raw.Value))
	assert.Equal(t, "fishability-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "mobile", raw.Headers["client"])
	assert.Nil(t, raw.Commit)
}

func TestMapMessageToRawEvent_NoHeaders(t *testing.T) {
	raw := mapMessageToRawEvent(kafkago.Message{Value: []byte(`{}`)})

	assert.NotNil(t, raw.Headers)
	assert.Empty(t, raw.Headers)
}

func TestToKafkaMessage(t *testing.T) {
	scoredAt := time.Date(2024, 5, 1, 6, 0, 5, 0, time.UTC)
	result := domain.ScoreResult{
		Lat:     45.9,
		Lon:     6.1,
		Time:    "2024-05-01T06:00:00Z",
		Species: domain.SpeciesTrout,
		Context: domain.ContextLake,
		Score:   86,
	}
	event, err := domain.SerializeScoreResult(result, scoredAt)
	require.NoError(t, err)

	msg := toKafkaMessage(event)

	assert.Equal(t, []byte(domain.ResultID(result)), msg.Key)
	assert.Contains(t, string(msg.Value), `"score":86`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "context", msg.Headers[0].Key)
	assert.Equal(t, []byte("lake"), msg.Headers[0].Value)
	assert.Equal(t, "scored_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-05-01T06:00:05Z"), msg.Headers[1].Value)
	assert.Equal(t, "species", msg.Headers[2].Key)
	assert.Equal(t, []byte("trout"), msg.Headers[2].Value)
}
