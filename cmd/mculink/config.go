package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"tinygo.org/x/bluetooth"

	"github.com/mklimuk/mculink/ble"
	"github.com/mklimuk/mculink/protocol"
)

// USBConfig identifies the HID bridge dongle.
type USBConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
}

// BLEConfig names the GATT surface of the endpoint.
type BLEConfig struct {
	Name        string `yaml:"name"`
	Service     string `yaml:"service"`
	CommandChar string `yaml:"command_char"`
	NotifyChar  string `yaml:"notify_char"`
}

type Config struct {
	Protocol protocol.Params `yaml:"protocol"`
	USB      USBConfig       `yaml:"usb"`
	BLE      BLEConfig       `yaml:"ble"`
}

func DefaultConfig() Config {
	return Config{
		Protocol: protocol.DefaultParams(),
		USB:      USBConfig{VendorID: 0x1209, ProductID: 0x4D43},
		BLE: BLEConfig{
			Name:        "MCULINK",
			Service:     "FFE0",
			CommandChar: "FFE1",
			NotifyChar:  "FFE2",
		},
	}
}

// LoadConfig returns the defaults overlaid with the yaml file at path, or
// plain defaults when path is empty.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file: %w", err)
	}
	if err = cfg.Protocol.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid protocol section: %w", err)
	}
	return cfg, nil
}

func (b BLEConfig) endpoint() (ble.Endpoint, error) {
	service, err := bluetooth.ParseUUID(b.Service)
	if err != nil {
		return ble.Endpoint{}, fmt.Errorf("invalid service uuid %q: %w", b.Service, err)
	}
	command, err := bluetooth.ParseUUID(b.CommandChar)
	if err != nil {
		return ble.Endpoint{}, fmt.Errorf("invalid command characteristic uuid %q: %w", b.CommandChar, err)
	}
	notify, err := bluetooth.ParseUUID(b.NotifyChar)
	if err != nil {
		return ble.Endpoint{}, fmt.Errorf("invalid notify characteristic uuid %q: %w", b.NotifyChar, err)
	}
	return ble.Endpoint{NamePrefix: b.Name, Service: service, Command: command, Notify: notify}, nil
}
