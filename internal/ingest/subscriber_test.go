package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandlerUnderTest(t *testing.T) (*Subscriber, *[][]model.Threat) {
	t.Helper()
	validator, err := NewValidator()
	require.NoError(t, err)

	var batches [][]model.Threat
	run := func(_ context.Context, candidates []model.Threat) error {
		batches = append(batches, candidates)
		return nil
	}
	return NewSubscriber(nil, validator, run, testLogger(), nil), &batches
}

func TestHandleMessageSingleObject(t *testing.T) {
	sub, batches := newHandlerUnderTest(t)

	sub.handleMessage(context.Background(), &nats.Msg{
		Data: []byte(`{"type": "Malware", "severity": "High", "description": "trojan dropper"}`),
	})

	require.Len(t, *batches, 1)
	require.Len(t, (*batches)[0], 1)
	assert.Equal(t, model.TypeMalware, (*batches)[0][0].Type)
	assert.Equal(t, model.SeverityHigh, (*batches)[0][0].Severity)
}

func TestHandleMessageArrayDropsInvalidEntries(t *testing.T) {
	sub, batches := newHandlerUnderTest(t)

	sub.handleMessage(context.Background(), &nats.Msg{
		Data: []byte(`[
			{"type": "DDoS", "severity": "Critical", "description": "flood"},
			{"type": "Broken", "severity": "Extreme", "description": "bad severity"},
			{"type": "Intrusion", "severity": "Medium", "description": "lateral movement"}
		]`),
	})

	require.Len(t, *batches, 1)
	batch := (*batches)[0]
	require.Len(t, batch, 2, "the invalid entry is dropped, the rest survive")
	assert.Equal(t, model.TypeDDoS, batch[0].Type)
	assert.Equal(t, model.TypeIntrusion, batch[1].Type)
}

func TestHandleMessageUnparseablePayload(t *testing.T) {
	sub, batches := newHandlerUnderTest(t)

	sub.handleMessage(context.Background(), &nats.Msg{Data: []byte(`{broken json`)})
	sub.handleMessage(context.Background(), &nats.Msg{Data: []byte(`"just a string"`)})
	sub.handleMessage(context.Background(), &nats.Msg{Data: []byte(`42`)})

	assert.Empty(t, *batches, "nothing reaches the pipeline")
}

func TestHandleMessageAllInvalidSkipsRun(t *testing.T) {
	sub, batches := newHandlerUnderTest(t)

	sub.handleMessage(context.Background(), &nats.Msg{
		Data: []byte(`[{"type": "Malware", "severity": "nope", "description": "x"}]`),
	})

	assert.Empty(t, *batches)
}
