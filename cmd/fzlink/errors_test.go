package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/session"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"bluetooth off", fmt.Errorf("scan: %w", device.ErrBluetoothOff), "Bluetooth is turned off; enable it and try again"},
		{"unsupported platform", device.ErrUnsupported, "Bluetooth is not supported on this platform"},
		{
			"unknown device",
			&device.NotFoundError{Resource: "device", UUIDs: []string{"AA:01"}},
			"device AA:01 was not discovered; make sure it is powered on and advertising",
		},
		{
			"connect timeout",
			device.NewStageError(device.ConnectError, "Connecting", "AA:01", device.ErrTimeout),
			"connect error failed for AA:01 (Connecting): timeout; the device did not answer in time",
		},
		{
			"write failure",
			device.NewStageError(device.WriteError, "Send", "AA:01", errors.New("gatt busy")),
			"write error failed for AA:01 (Send): gatt busy",
		},
		{
			"not ready",
			fmt.Errorf("%w: AA:01 is Connecting", session.ErrNotReady),
			"the link is not ready for commands: session is not ready: AA:01 is Connecting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
