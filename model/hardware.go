package model

import (
	"time"

	"github.com/pkg/errors"
)

// DeviceConfig holds configuration data for the hardware device
// that generates the PWM signal.
type DeviceConfig struct {
	// Type of the device
	Type DeviceType `json:"type" yaml:"type"`
	// Address is used to identify the device.
	// For mqtt devices this is the topic prefix,
	// for serial devices this is the port name (e.g. /dev/ttyUSB0).
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Baud rate of serial devices
	BaudRate int `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	// Maximum time to wait for a device to acknowledge a command
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DeviceType identifies a type of PWM device
type DeviceType string

const (
	// PWM output of the bridge (on board hardware PWM)
	DeviceTypeLocal DeviceType = "local"
	// PWM output controlled by MQTT commands
	DeviceTypeMQTT DeviceType = "mqtt"
	// PWM output of a microcontroller attached to a serial port
	DeviceTypeSerial DeviceType = "serial"

	DefaultBaudRate      = 115200
	DefaultDeviceTimeout = 200 * time.Millisecond
)

// Validate the given type, returning nil on ok,
// or an error upon validation issues.
func (t DeviceType) Validate() error {
	switch t {
	case DeviceTypeLocal, DeviceTypeMQTT, DeviceTypeSerial:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid device type '%s'", string(t))
	}
}

// GetBaudRate returns the configured baud rate or its default.
func (d DeviceConfig) GetBaudRate() int {
	if d.BaudRate > 0 {
		return d.BaudRate
	}
	return DefaultBaudRate
}

// GetTimeout returns the configured timeout or its default.
func (d DeviceConfig) GetTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultDeviceTimeout
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (d DeviceConfig) Validate() error {
	if err := d.Type.Validate(); err != nil {
		return maskAny(err)
	}
	if d.Type == DeviceTypeSerial && d.Address == "" {
		return errors.Wrap(ValidationError, "Address (serial port) of serial device is empty")
	}
	if d.BaudRate < 0 {
		return errors.Wrapf(ValidationError, "Invalid baud rate %d", d.BaudRate)
	}
	if d.Timeout < 0 {
		return errors.Wrap(ValidationError, "Timeout cannot be negative")
	}
	return nil
}
