package mail

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaMailerPublishesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	m := newKafkaMailer(w, DefaultTopic, zap.NewNop())

	msg := Message{To: "owner@example.com", Subject: "Your code", Body: "123456", Kind: KindLoginCode}
	require.NoError(t, m.Send(context.Background(), msg))
	require.Len(t, w.written, 1)

	got := w.written[0]
	assert.Equal(t, DefaultTopic, got.Topic)
	assert.Equal(t, []byte("owner@example.com"), got.Key)
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "kind", got.Headers[0].Key)
	assert.Equal(t, []byte(KindLoginCode), got.Headers[0].Value)

	var decoded Message
	require.NoError(t, json.Unmarshal(got.Value, &decoded))
	assert.Equal(t, msg, decoded)

	require.NoError(t, m.Close())
	assert.True(t, w.closed)
}

func TestKafkaMailerWrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	m := newKafkaMailer(w, DefaultTopic, zap.NewNop())

	err := m.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestNewKafkaMailerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaMailer(nil, "", nil)
	assert.Error(t, err)
}

func TestLogMailerNeverLogsBody(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), Message{
		To: "owner@example.com", Subject: "Your code", Body: "654321", Kind: KindLoginCode,
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, KindLoginCode, fields["kind"])
	assert.NotEqual(t, "owner@example.com", fields["to"])
	for _, v := range fields {
		assert.NotEqual(t, "654321", v)
	}
}
