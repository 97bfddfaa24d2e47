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

//go:build !linux

package bridge

import (
	"fmt"
	"runtime"
)

// NewRaspberryPiBridge is only available on Linux.
func NewRaspberryPiBridge() (API, error) {
	return nil, fmt.Errorf("Raspberry Pi bridge not supported on %s", runtime.GOOS)
}

// NewPi5Bridge is only available on Linux.
func NewPi5Bridge() (API, error) {
	return nil, fmt.Errorf("Raspberry Pi 5 bridge not supported on %s", runtime.GOOS)
}
