//    Copyright 2018 Ewout Prangsma
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

package environment

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

var (
	deviceTreeModelPaths = []string{
		"/sys/firmware/devicetree/base/model",
		"/proc/device-tree/model",
	}
)

// AutoDetectBridgeType detects the default bridge type based on the environment.
func AutoDetectBridgeType(log zerolog.Logger) string {
	for _, p := range deviceTreeModelPaths {
		content, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		model := strings.Trim(strings.TrimSpace(string(content)), "\x00")
		log.Debug().Str("model", model).Msg("Found device tree model")
		if bt, ok := bridgeTypeFromModel(model); ok {
			return bt
		}
	}
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		log.Warn().Err(err).Msg("Uname failed")
		return BridgeTypeVirtual
	}
	return bridgeTypeFromMachine(unix.ByteSliceToString(name.Machine[:]))
}

// bridgeTypeFromMachine returns the bridge type for a machine without
// a recognized device tree model.
func bridgeTypeFromMachine(machine string) string {
	machine = strings.TrimSpace(machine)
	if strings.HasPrefix(machine, "arm") || machine == "aarch64" {
		return BridgeTypeRaspberryPi
	}
	return BridgeTypeVirtual
}
