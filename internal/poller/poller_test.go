package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

type mockClearer struct {
	m       sync.Mutex
	cleared []string
}

func (c *mockClearer) Clear(_ context.Context, sessionID string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.cleared = append(c.cleared, sessionID)
}

func (c *mockClearer) sessions() []string {
	c.m.Lock()
	defer c.m.Unlock()
	return append([]string(nil), c.cleared...)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		cleared []string
	}{
		{"valid completion", `{"session_id":"s1","checkout_id":"c1"}`, false, []string{"s1"}},
		{"missing checkout id is fine", `{"session_id":"s2"}`, false, []string{"s2"}},
		{"missing session id", `{"checkout_id":"c1"}`, true, nil},
		{"wrong type", `{"session_id":42}`, true, nil},
		{"not json", `checkout done`, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearer := &mockClearer{}
			p := &Poller{clearer: clearer, logger: zap.NewNop()}

			err := p.handle(context.Background(), []byte(tt.value))

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.cleared, clearer.sessions())
		})
	}
}

func setupKafka(t *testing.T) string {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	testcontainers.CleanupContainer(t, kafkaContainer)
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_ClearsCartOnCompletion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	broker := setupKafka(t)
	createTopic(t, broker, Topic)

	clearer := &mockClearer{}
	p := NewPoller(clearer, zap.NewNop(), broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	writer := &kafkaGo.Writer{Addr: kafkaGo.TCP(broker), Topic: Topic}
	defer writer.Close()

	garbage := kafkaGo.Message{Value: []byte("not json")}
	payload, err := json.Marshal(Completion{SessionID: "s1", CheckoutID: "c1"})
	require.NoError(t, err)
	require.NoError(t, writer.WriteMessages(context.Background(), garbage, kafkaGo.Message{Value: payload}))

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"s1"}, clearer.sessions())
	}, 60*time.Second, 200*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.NoError(t, p.Close())
}
