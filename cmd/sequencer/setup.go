package main

import (
	"time"

	"github.com/dudk/sequencer/config"
	"github.com/dudk/sequencer/engine"
	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/plugin/builtin"
	"github.com/dudk/sequencer/song"
	"github.com/dudk/sequencer/vst2"
)

// loadConfig reads config from path or from the default location.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func newRegistry(cfg *config.Config, l log.Logger) *plugin.Registry {
	r := plugin.NewRegistry()
	builtin.Register(r)
	cache := vst2.NewCache(l, cfg.PluginPaths...)
	r.Prefix(vst2.Prefix, cache.Loader(cfg.NumChannels))
	r.Suffix(vst2.Ext, vst2.Loader(cfg.NumChannels))
	return r
}

// newDriver loads plugins of the song and creates driver.
func newDriver(cfg *config.Config, s *song.Song, l log.Logger) (*engine.Driver, error) {
	plugins, err := engine.Load(s, newRegistry(cfg, l))
	if err != nil {
		return nil, err
	}
	return engine.New(s, plugins,
		engine.WithLogger(l),
		engine.WithWorkers(cfg.Workers),
		engine.WithContentionTimeout(time.Duration(cfg.ContentionTimeout)),
		engine.WithBlock(cfg.NumChannels, cfg.BufferSize),
	)
}
