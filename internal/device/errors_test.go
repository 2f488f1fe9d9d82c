package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		expected string
	}{
		{"no uuids", &NotFoundError{Resource: "device"}, "device not found"},
		{"service", &NotFoundError{Resource: "service", UUIDs: []string{"ae30"}}, `service "ae30" not found`},
		{"characteristic", &NotFoundError{Resource: "characteristic", UUIDs: []string{"ae30", "ae02"}}, `characteristic "ae02" not found in service "ae30"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionError_Is(t *testing.T) {
	wrapped := fmt.Errorf("%w: peer went away", ErrNotConnected)

	assert.ErrorIs(t, wrapped, ErrNotConnected)
	assert.NotErrorIs(t, wrapped, ErrAlreadyConnected)
	assert.True(t, IsConnectionState(wrapped, NotConnected))
	assert.False(t, IsConnectionState(errors.New("other"), NotConnected))
}

func TestStageError(t *testing.T) {
	cause := &NotFoundError{Resource: "service", UUIDs: []string{"ae30"}}
	err := NewStageError(DiscoveryError, "ServiceDiscovery", "ABCD", cause)

	assert.Equal(t, `discovery error [ABCD] during ServiceDiscovery: service "ae30" not found`, err.Error())
	assert.ErrorIs(t, err, ErrKind(DiscoveryError), "MUST match sentinel of the same kind")
	assert.NotErrorIs(t, err, ErrKind(ConnectError), "MUST NOT match sentinel of another kind")

	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf, "MUST unwrap to the cause")

	wrapped := fmt.Errorf("session: %w", err)
	assert.Equal(t, DiscoveryError, KindOf(wrapped))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "scan error", ScanError.String())
	assert.Equal(t, "notification error", NotificationError.String())
	assert.Equal(t, "error kind 42", ErrorKind(42).String())
}
