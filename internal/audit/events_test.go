package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEventAndSeal(t *testing.T) {
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("User-Agent", "test-agent")

	event := BuildEvent(ActionLogin, OutcomeSuccess, ActorTypeMember, "42", MetaFromRequest(req))
	assert.Equal(t, "192.0.2.10", event.IPAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.Equal(t, "POST /login", event.Resource)
	assert.Empty(t, event.Hash)

	sealed := event.Sealed()
	assert.Len(t, sealed.Hash, 64)
	assert.Equal(t, sealed.Hash, sealed.Sealed().Hash, "hash ignores the previous hash")

	event.Reason = "changed"
	assert.NotEqual(t, sealed.Hash, event.Sealed().Hash)
}

func TestLoggerEmitter(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLoggerEmitter(zerolog.New(&buf))

	event := BuildEvent(ActionLoginFailed, OutcomeFailure, ActorTypeAnonymous, "r.durand", RequestMeta{})
	event.Reason = "invalid_credentials"
	require.NoError(t, emitter.Emit(context.Background(), event))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["component"])
	assert.Equal(t, ActionLoginFailed, line["action"])
	assert.Equal(t, "invalid_credentials", line["reason"])
	assert.NotEmpty(t, line["hash"])
}

func TestNoopEmitter(t *testing.T) {
	assert.NoError(t, NewNoopEmitter().Emit(context.Background(), Event{}))
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEmitterPublishes(t *testing.T) {
	writer := &fakeWriter{}
	emitter := newKafkaEmitter(writer, "audit.oauth2", zerolog.Nop())

	event := BuildEvent(ActionLogout, OutcomeSuccess, ActorTypeMember, "7", RequestMeta{})
	event.ClientID = "galette_nextcloud"
	require.NoError(t, emitter.Emit(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, event.EventID.String(), string(msg.Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ActionLogout, decoded.Action)
	assert.Equal(t, "galette_nextcloud", decoded.ClientID)
	assert.NotEmpty(t, decoded.Hash)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, ActionLogout, headers["action"])
}

func TestKafkaEmitterErrors(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	emitter := newKafkaEmitter(writer, "audit.oauth2", zerolog.Nop())

	err := emitter.Emit(context.Background(), BuildEvent(ActionLogin, OutcomeSuccess, ActorTypeMember, "1", RequestMeta{}))
	require.Error(t, err)

	require.NoError(t, emitter.Close())
	assert.True(t, writer.closed)
	require.Error(t, emitter.Emit(context.Background(), Event{}))
	require.NoError(t, emitter.Close())
}

func TestNewKafkaEmitterValidates(t *testing.T) {
	_, err := NewKafkaEmitter(KafkaConfig{Topic: "t"}, zerolog.Nop())
	require.Error(t, err)
	_, err = NewKafkaEmitter(KafkaConfig{Brokers: []string{"localhost:9092"}}, zerolog.Nop())
	require.Error(t, err)

	emitter, err := NewKafkaEmitter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", ClientID: "bridge"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, emitter.Close())
}
