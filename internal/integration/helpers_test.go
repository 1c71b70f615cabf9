//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/fishability-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("fishability-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

// loadMockData reads the fixture scoring requests.
func loadMockData(t *testing.T) []domain.ScoreItem {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", "requests.json"))
	require.NoError(t, err, "read fixture")

	var items []domain.ScoreItem
	require.NoError(t, json.Unmarshal(data, &items), "parse fixture")
	require.NotEmpty(t, items)
	return items
}

// fixedSource serves one bundle for every location so results depend only
// on the request.
type fixedSource struct{}

func (fixedSource) Features(context.Context, float64, float64) (domain.FeatureBundle, error) {
	return domain.FeatureBundle{
		WaterTemp:     domain.Known(14),
		AirTemp:       domain.Known(13),
		PressureTrend: domain.Known(-0.2),
		WindSpeed:     domain.Known(4),
		WindDirection: domain.Known(180),
		CloudCover:    domain.Known(60),
		Rain6h:        domain.Known(1),
		IsDay:         domain.UnknownFlag(),
	}, nil
}
