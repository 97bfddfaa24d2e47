//    Copyright 2026 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

//go:build linux

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	pwmSysfsBase = "/sys/class/pwm"
	// Time to wait for udev to fix permissions of freshly exported files
	sysfsRetryTimeout = 2 * time.Second
)

// sysfsPWM drives a hardware PWM channel via /sys/class/pwm.
type sysfsPWM struct {
	mutex   sync.Mutex
	pin     string
	pwmPath string
	period  time.Duration
	duty    time.Duration
}

// openSysfsPWM exports the given channel of the first usable pwmchip.
func openSysfsPWM(pin, channel int) (*sysfsPWM, error) {
	chipPath, err := findPWMChip(channel)
	if err != nil {
		return nil, maskAny(err)
	}
	d := &sysfsPWM{
		pin:     strconv.Itoa(pin),
		pwmPath: filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
	}
	if _, err := os.Stat(d.pwmPath); err != nil {
		if err := writeSysfs(filepath.Join(chipPath, "export"), strconv.Itoa(channel)); err != nil {
			// Already exported by someone else is fine
			if _, statErr := os.Stat(d.pwmPath); statErr != nil {
				return nil, errors.Wrapf(err, "Export of pwm channel %d failed", channel)
			}
		}
		if err := waitForPath(d.pwmPath); err != nil {
			return nil, errors.Wrap(err, "PWM channel not created after export")
		}
	}
	return d, nil
}

// findPWMChip returns the first pwmchip that has enough channels.
func findPWMChip(channel int) (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to read %s", pwmSysfsBase)
	}
	var names []string
	for _, e := range entries {
		// pwmchipN entries are usually symlinks
		if strings.HasPrefix(e.Name(), "pwmchip") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		chip := filepath.Join(pwmSysfsBase, name)
		n, err := readInt(filepath.Join(chip, "npwm"))
		if err != nil {
			continue
		}
		if channel < n {
			return chip, nil
		}
	}
	return "", fmt.Errorf("no pwmchip with channel %d found in %s (is the pwm overlay enabled?)", channel, pwmSysfsBase)
}

// SetPeriod sets the length of a single PWM period.
func (d *sysfsPWM) SetPeriod(period time.Duration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if period <= 0 {
		return fmt.Errorf("Invalid period %s", period)
	}
	// The kernel rejects a period shorter than the current duty cycle
	if d.duty > period {
		if err := d.write("duty_cycle", 0); err != nil {
			return maskAny(err)
		}
		d.duty = 0
	}
	if err := d.write("period", uint64(period.Nanoseconds())); err != nil {
		return maskAny(err)
	}
	d.period = period
	return nil
}

// SetDutyCycle sets the high time of each period.
func (d *sysfsPWM) SetDutyCycle(duty time.Duration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if duty < 0 || duty > d.period {
		pwmWriteErrorCounters.WithLabelValues(d.pin).Inc()
		return fmt.Errorf("Duty cycle %s outside period %s", duty, d.period)
	}
	if err := d.write("duty_cycle", uint64(duty.Nanoseconds())); err != nil {
		return maskAny(err)
	}
	d.duty = duty
	return nil
}

// Enable turns the output on/off.
func (d *sysfsPWM) Enable(enabled bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	value := uint64(0)
	if enabled {
		value = 1
	}
	return d.write("enable", value)
}

// Close disables the output.
func (d *sysfsPWM) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.write("enable", 0)
}

func (d *sysfsPWM) write(name string, value uint64) error {
	if err := writeSysfs(filepath.Join(d.pwmPath, name), strconv.FormatUint(value, 10)); err != nil {
		pwmWriteErrorCounters.WithLabelValues(d.pin).Inc()
		return errors.Wrapf(err, "Failed to write %s", name)
	}
	pwmWriteCounters.WithLabelValues(d.pin).Inc()
	return nil
}

// writeSysfs writes a value into a sysfs attribute.
// Freshly exported attributes can briefly return EACCES or ENOENT
// until udev has adjusted them, so these errors are retried.
func writeSysfs(path string, value string) error {
	deadline := time.Now().Add(sysfsRetryTimeout)
	for {
		// No O_TRUNC, some attributes reject it
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err == nil {
			_, err = f.WriteString(value)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
		if err == nil {
			return nil
		}
		if !isRetryableSysfsErr(err) || time.Now().After(deadline) {
			return maskAny(err)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) ||
		errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOENT)
}

func waitForPath(path string) error {
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		_, err := os.Stat(path)
		if err == nil || time.Now().After(deadline) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
