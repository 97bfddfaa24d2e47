package bridge

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoHardwarePWM is returned when a pin is not routed to a hardware PWM channel.
	ErrNoHardwarePWM = errors.New("no hardware PWM channel")

	maskAny = errors.WithStack
)
