// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReturnsBrokerAck(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	pub := NewWithProducer(producer)
	defer pub.Close()

	ack, err := pub.Publish(context.Background(), "events.created", "order-1", map[string]string{"trace": "t1"}, map[string]any{"payload": "x"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ack.Offset, int64(0))
}

func TestPublishSurfacesBrokerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	pub := NewWithProducer(producer)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), "events.created", "", nil, map[string]any{"payload": "x"})
	assert.Error(t, err)
}
