package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The payload must cross the queue boundary byte-for-byte: the worker posts
// it to the target verbatim.
func TestDeliveryJobPayloadIsLossless(t *testing.T) {
	eventType := "order.created"
	job := DeliveryJob{
		SubscriptionID: "5d8c9c6e-98a7-4f0e-a006-4ac9a8f9e001",
		Payload:        json.RawMessage(`{"x":1,"nested":{"list":[1,2,3],"s":"é"}}`),
		EventType:      &eventType,
		WebhookID:      "3e1a2d75-1f6a-4f44-9c25-0a4cf761d9c2",
		Attempt:        2,
	}

	encoded, err := json.Marshal(&job)
	require.NoError(t, err)

	var decoded DeliveryJob
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.JSONEq(t, string(job.Payload), string(decoded.Payload))
	assert.Equal(t, job.SubscriptionID, decoded.SubscriptionID)
	assert.Equal(t, 2, decoded.Attempt)
	assert.Nil(t, decoded.Signature)
	require.NotNil(t, decoded.EventType)
	assert.Equal(t, "order.created", *decoded.EventType)
}
