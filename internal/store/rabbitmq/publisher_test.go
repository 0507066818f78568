package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyFor(t *testing.T) {
	topo := TopologyFor("chat_jobs")
	assert.Equal(t, Topology{Main: "chat_jobs", Retry: "chat_jobs.retry", DLQ: "chat_jobs.dlq"}, topo)
}

func TestDecodeJob(t *testing.T) {
	m, err := DecodeJob([]byte(`{"job_id":"01HX"}`))
	require.NoError(t, err)
	assert.Equal(t, "01HX", m.JobID)

	_, err = DecodeJob([]byte(`{}`))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`not json`))
	assert.Error(t, err)
}

func TestAttempt(t *testing.T) {
	assert.Equal(t, 0, Attempt(amqp.Delivery{}))
	assert.Equal(t, 2, Attempt(amqp.Delivery{Headers: amqp.Table{attemptHeader: int32(2)}}))
	assert.Equal(t, 3, Attempt(amqp.Delivery{Headers: amqp.Table{attemptHeader: int64(3)}}))
}

func TestFormatMillis(t *testing.T) {
	assert.Equal(t, "1500", formatMillis(1500*time.Millisecond))
	assert.Equal(t, "1", formatMillis(time.Microsecond))
}
