package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/srg/fzlink/internal/device"
)

// Client is the part of ble.Client the transport drives on a live link.
type Client interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	CancelConnection() error
}

// Radio is the local adapter: it scans and dials peripherals.
type Radio interface {
	Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error
	Dial(ctx context.Context, addr string) (Client, error)
}

// deviceRadio adapts a ble.Device to Radio
type deviceRadio struct {
	dev ble.Device
}

func (r *deviceRadio) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	return r.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
}

func (r *deviceRadio) Dial(ctx context.Context, addr string) (Client, error) {
	cln, err := r.dev.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, err
	}
	return cln, nil
}

// NewRadio opens the platform adapter through DeviceFactory.
func NewRadio() (Radio, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	ble.SetDefaultDevice(dev)
	return &deviceRadio{dev: dev}, nil
}
