package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badgegate/internal/platform/config"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.Kafka{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers")
}

func TestNewProducerDoesNotDial(t *testing.T) {
	cfg := config.Defaults().Kafka
	cfg.Brokers = []string{"127.0.0.1:1"}

	p, err := NewProducer(cfg)
	require.NoError(t, err)
	p.client.Close()
}
