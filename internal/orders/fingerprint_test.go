package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_DeterministicForSameInput(t *testing.T) {
	req := CreateOrderRequest{Type: "dine_in", Lines: []LineInput{{Quantity: 2}}}

	a, err := fingerprint(req)
	require.NoError(t, err)
	b, err := fingerprint(req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded sha256
}

func TestFingerprint_DiffersOnPayloadChange(t *testing.T) {
	a, err := fingerprint(CreateOrderRequest{Lines: []LineInput{{Quantity: 1}}})
	require.NoError(t, err)
	b, err := fingerprint(CreateOrderRequest{Lines: []LineInput{{Quantity: 2}}})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
