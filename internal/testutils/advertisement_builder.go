package testutils

import "github.com/srg/fzlink/internal/device"

// Advertisement is a canned device.Advertisement
type Advertisement struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Rssi        int      `json:"rssi"`
	ServiceList []string `json:"services,omitempty"`
	ManufData   []byte   `json:"manufacturer_data,omitempty"`
	TxPower     int      `json:"tx_power"`
	IsConnect   bool     `json:"connectable"`
}

func (a *Advertisement) LocalName() string        { return a.Name }
func (a *Advertisement) ManufacturerData() []byte { return a.ManufData }
func (a *Advertisement) Services() []string       { return a.ServiceList }
func (a *Advertisement) TxPowerLevel() int        { return a.TxPower }
func (a *Advertisement) Connectable() bool        { return a.IsConnect }
func (a *Advertisement) RSSI() int                { return a.Rssi }
func (a *Advertisement) Addr() string             { return a.Address }

// AdvertisementBuilder builds canned advertisements for scan tests.
type AdvertisementBuilder struct {
	adv Advertisement
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder.
// The builder starts with connectable=true.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: Advertisement{IsConnect: true}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceList = append(b.adv.ServiceList, device.NormalizeUUIDs(uuids)...)
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.ManufData = data
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.adv.TxPower = power
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnect = c
	return b
}

// Build returns a copy of the configured advertisement
func (b *AdvertisementBuilder) Build() *Advertisement {
	adv := b.adv
	return &adv
}

// FzoneAdvertisement is a shortcut for a named, connectable advertiser
func FzoneAdvertisement(name, address string) *Advertisement {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(-60).Build()
}
