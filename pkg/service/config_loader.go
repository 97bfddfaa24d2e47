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

package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
)

const (
	// Editors often write a file in multiple steps
	configReloadDelay = time.Millisecond * 250
)

// watchConfig watches the configuration file and sends changed sweep
// configurations into the given channel, until the context is canceled.
func (s *service) watchConfig(ctx context.Context, configChanged chan<- *model.SweepConfig) error {
	log := s.Logger.With().Str("component", "config-reader").Logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "Failed to create watcher")
	}
	defer watcher.Close()
	// Watch the directory, the file may be replaced instead of written
	path, err := filepath.Abs(s.ConfigPath)
	if err != nil {
		return maskAny(err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "Failed to watch '%s'", filepath.Dir(path))
	}
	log.Debug().Str("path", path).Msg("Watching configuration file")

	var reload <-chan time.Time
	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Clean(evt.Name) != path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload = time.After(configReloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			log.Warn().Err(err).Msg("Watcher error")
		case <-reload:
			reload = nil
			conf, changed := s.reloadConfig(log)
			if !changed {
				continue
			}
			select {
			case configChanged <- &conf.Sweep:
				// Continue
			case <-ctx.Done():
				// Context canceled
				return nil
			}
		case <-ctx.Done():
			// Context canceled
			return nil
		}
	}
}

// reloadConfig loads the configuration file.
// Returns true when the sweep configuration has changed.
func (s *service) reloadConfig(log zerolog.Logger) (model.Config, bool) {
	conf, err := model.LoadConfig(s.ConfigPath)
	if err != nil {
		configurationErrorsTotal.Inc()
		log.Warn().Err(err).Msg("Ignoring invalid configuration")
		return model.Config{}, false
	}
	if s.Overrides != nil {
		s.Overrides(&conf)
		if err := conf.Validate(); err != nil {
			configurationErrorsTotal.Inc()
			log.Warn().Err(err).Msg("Ignoring invalid configuration")
			return model.Config{}, false
		}
	}

	s.mutex.Lock()
	current := s.currentConfig
	s.mutex.Unlock()

	if !conf.Actuator.SameBinding(current.Actuator) || conf.Device != current.Device || conf.MQTT != current.MQTT {
		log.Warn().Msg("Actuator, device or MQTT configuration changed; restart required to apply")
	}
	if conf.Sweep == current.Sweep {
		log.Debug().Msg("Sweep configuration unchanged")
		return conf, false
	}
	log.Info().
		Int("upper", conf.Sweep.UpperAngle).
		Int("lower", conf.Sweep.LowerAngle).
		Dur("settle_delay", conf.Sweep.SettleDelay).
		Msg("Sweep configuration changed")
	configurationChangesTotal.Inc()

	s.mutex.Lock()
	s.currentConfig.Sweep = conf.Sweep
	s.mutex.Unlock()
	if conf.Sweep.CycleDelay != current.Sweep.CycleDelay {
		s.SetCycleDelay(conf.Sweep.CycleDelay)
	}
	return conf, true
}
