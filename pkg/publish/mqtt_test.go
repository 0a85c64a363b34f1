package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/godaq/pkg/sample"
	"github.com/itohio/godaq/pkg/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken completes immediately unless hang is set.
type fakeToken struct {
	hang bool
	err  error
	done chan struct{}
}

func newFakeToken(hang bool, err error) *fakeToken {
	t := &fakeToken{hang: hang, err: err, done: make(chan struct{})}
	if !hang {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	messages     []published
	hang         bool
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic: topic, payload: payload.([]byte)})
	return newFakeToken(c.hang, c.err)
}

func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = true }

func TestMQTT_Render(t *testing.T) {
	client := &fakeClient{}
	m := newMQTT(client, "godaq/live", []string{"ai0", "ai1"}, time.Second)

	m.Render(view.Update{
		Cycle:   7,
		Voltage: sample.Reading{1.5, -0.25},
		Current: sample.Reading{0.01, 0.002},
	})

	require.Len(t, client.messages, 1)
	assert.Equal(t, "godaq/live", client.messages[0].topic)

	var p Payload
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &p))
	assert.Equal(t, Payload{
		Cycle:    7,
		Channels: []string{"ai0", "ai1"},
		Voltage:  []float64{1.5, -0.25},
		Current:  []float64{0.01, 0.002},
	}, p)
	assert.Equal(t, 0, m.Dropped())
}

func TestMQTT_RenderIsBounded(t *testing.T) {
	client := &fakeClient{hang: true}
	m := newMQTT(client, "t", []string{"ai0"}, 10*time.Millisecond)

	start := time.Now()
	for i := range 3 {
		m.Render(view.Update{Cycle: i, Voltage: sample.Reading{1}, Current: sample.Reading{0}})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 3, m.Dropped())
}

func TestMQTT_PublishErrorIsNotFatal(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	m := newMQTT(client, "t", nil, 0)

	m.Render(view.Update{Cycle: 0, Voltage: sample.Reading{1}})
	m.Render(view.Update{Cycle: 1, Voltage: sample.Reading{2}})

	assert.Len(t, client.messages, 2)
	assert.Equal(t, DefaultPublishTimeout, m.timeout)
}

func TestMQTT_Close(t *testing.T) {
	client := &fakeClient{}
	m := newMQTT(client, "t", nil, 0)
	require.NoError(t, m.Close())
	assert.True(t, client.disconnected)
}
