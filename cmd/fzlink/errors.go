package main

import (
	"errors"
	"fmt"

	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/session"
)

// FormatUserError turns an error into the one-line message printed after "ERROR:"
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var nf *device.NotFoundError
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.Is(err, device.ErrUnsupported) && device.KindOf(err) == 0:
		return "Bluetooth is not supported on this platform"
	case errors.As(err, &nf) && nf.Resource == "device" && len(nf.UUIDs) > 0:
		return fmt.Sprintf("device %s was not discovered; make sure it is powered on and advertising", nf.UUIDs[0])
	case errors.Is(err, session.ErrNotReady):
		return "the link is not ready for commands: " + err.Error()
	}

	var se *device.StageError
	if errors.As(err, &se) {
		msg := fmt.Sprintf("%s failed", se.Kind)
		if se.ID != "" {
			msg = fmt.Sprintf("%s for %s", msg, se.ID)
		}
		if se.Stage != "" {
			msg = fmt.Sprintf("%s (%s)", msg, se.Stage)
		}
		if se.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, se.Err)
		}
		if errors.Is(err, device.ErrTimeout) {
			msg += "; the device did not answer in time"
		}
		return msg
	}
	return err.Error()
}
