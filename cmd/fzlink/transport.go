package main

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/internal/device"
	goble "github.com/srg/fzlink/internal/device/go-ble"
)

// transportFactory opens the radio; tests replace it with a mock.
// allowDuplicates reports every advertising packet, e.g. to follow signal strength.
var transportFactory = func(logger *logrus.Logger, allowDuplicates bool) (device.Transport, func(), error) {
	t, err := goble.Open(logger, goble.WithDuplicates(allowDuplicates))
	if err != nil {
		return nil, nil, err
	}
	return t, func() { _ = t.Close() }, nil
}
