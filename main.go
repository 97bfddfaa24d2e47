//    Copyright 2017 Ewout Prangsma
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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/environment"
	"github.com/binkynet/ServoSweeper/pkg/logging"
	"github.com/binkynet/ServoSweeper/pkg/mqtt"
	"github.com/binkynet/ServoSweeper/pkg/server"
	"github.com/binkynet/ServoSweeper/pkg/service"
	"github.com/binkynet/ServoSweeper/pkg/service/bridge"
	"github.com/binkynet/ServoSweeper/pkg/ui"
)

const (
	projectName     = "Servo Sweeper"
	defaultHTTPPort = 7129
	defaultGRPCPort = 7130
	defaultSSHPort  = 7122
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var bridgeType string
	var configPath string
	var serverHost string
	var httpPort, grpcPort, sshPort int
	var mqttHost string
	var mqttPort int
	var cycleDelay time.Duration

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", environment.BridgeTypeAuto, "Type of bridge to use (rpi|pi5|virtual|auto)")
	pflag.StringVarP(&configPath, "config", "c", "", "Path of the YAML configuration file")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the servers will listen on")
	pflag.IntVar(&httpPort, "http-port", defaultHTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&grpcPort, "grpc-port", defaultGRPCPort, "Port the GRPC server will listen on")
	pflag.IntVar(&sshPort, "ssh-port", defaultSSHPort, "Port the SSH server will listen on")
	pflag.StringVar(&mqttHost, "mqtt-host", "", "Host of the MQTT broker (overrides config)")
	pflag.IntVar(&mqttPort, "mqtt-port", 0, "Port of the MQTT broker (overrides config)")
	pflag.DurationVar(&cycleDelay, "cycle-delay", 0, "Delay between two sweeps (overrides config)")
	pflag.Parse()

	// Prepare logging
	ctx, cancel := context.WithCancel(context.Background())
	mqttWriter := logging.NewMQTTWriter(ctx)
	logOutput := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, mqttWriter)
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	// Load configuration
	conf := model.DefaultConfig()
	if configPath != "" {
		conf, err = model.LoadConfig(configPath)
		if err != nil {
			Exitf("Failed to load configuration: %v\n", err)
		}
	}
	overrides := func(conf *model.Config) {
		if mqttHost != "" {
			conf.MQTT.Host = mqttHost
		}
		if mqttPort != 0 {
			conf.MQTT.Port = mqttPort
		}
		if pflag.CommandLine.Changed("cycle-delay") {
			conf.Sweep.CycleDelay = cycleDelay
		}
	}
	overrides(&conf)
	if err := conf.Validate(); err != nil {
		Exitf("Invalid configuration: %v\n", err)
	}

	hostID, err := os.Hostname()
	if err != nil {
		Exitf("Failed to get hostname: %v\n", err)
	}

	// Prepare MQTT
	var mqttSvc mqtt.Service
	if conf.MQTT.Enabled() {
		mqttSvc, err = newMQTTService(conf.MQTT, "servosweeper-status-"+hostID, logger)
		if err != nil {
			Exitf("Failed to initialize MQTT: %v\n", err)
		}
		defer mqttSvc.Close()
		mqttWriter.SetDestination(conf.MQTT.LogsTopic(), mqttSvc)
		mqttWriter.Enable(conf.MQTT.Logs)
	}

	// Prepare bridge
	if bridgeType == environment.BridgeTypeAuto {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	var br bridge.API
	switch bridgeType {
	case environment.BridgeTypeRaspberryPi:
		br, err = bridge.NewRaspberryPiBridge()
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi Bridge: %v\n", err)
		}
	case environment.BridgeTypeRaspberryPi5:
		br, err = bridge.NewPi5Bridge()
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi 5 Bridge: %v\n", err)
		}
	case environment.BridgeTypeVirtual:
		br, err = bridge.NewVirtualBridge()
		if err != nil {
			Exitf("Failed to initialize Virtual Bridge: %v\n", err)
		}
	default:
		Exitf("Unknown bridge type '%s' (rpi|pi5|virtual|auto)\n", bridgeType)
	}
	defer br.Close()

	svc, err := service.NewService(service.Config{
		Sweeper:        conf,
		ConfigPath:     configPath,
		Overrides:      overrides,
		ProgramVersion: projectVersion,
		HostID:         hostID,
	}, service.Dependencies{
		Logger: logger,
		Bridge: br,
		MQTT:   mqttSvc,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	srv, err := server.New(server.Config{
		Host:     serverHost,
		HTTPPort: httpPort,
		GRPCPort: grpcPort,
		SSHPort:  sshPort,
	}, logger, ui.New(svc), svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %#v", err)
	}
}

func newMQTTService(conf model.MQTTConfig, clientID string, log zerolog.Logger) (mqtt.Service, error) {
	result, err := mqtt.NewService(mqtt.Config{
		Host:     conf.Host,
		Port:     conf.Port,
		UserName: conf.UserName,
		Password: conf.Password,
		ClientID: clientID,
	}, log)
	if err != nil {
		return nil, maskAny(err)
	}
	return result, nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
