package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/crazy-max/gonfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SearchPaths lists where a configuration file named after app is looked up.
func SearchPaths(app string) []string {
	return []string{
		fmt.Sprintf("/etc/%s/%s", app, app),
		fmt.Sprintf("$HOME/.config/%s", app),
		fmt.Sprintf("./%s", app),
	}
}

// Load overlays the configuration file, then the environment, on cfg. A
// missing file is not an error.
func (cfg *Config) Load(app, configFile string) error {
	if configFile == "" {
		configFile = app + ".yml"
	} else {
		configFile = path.Clean(configFile)
	}

	fileLoader := gonfig.NewFileLoader(gonfig.FileLoaderConfig{
		Filename: configFile,
		Finder: gonfig.Finder{
			BasePaths:  SearchPaths(app),
			Extensions: []string{"yaml", "yml"},
		},
	})
	found, err := fileLoader.Load(cfg)
	switch {
	case err != nil:
		return errors.Wrapf(err, "failed to decode configuration from file: %s", fileLoader.GetFilename())
	case found:
		log.Infof("configuration loaded from file: %s", fileLoader.GetFilename())
	default:
		log.Debugf("no configuration file found: %s", configFile)
	}

	envLoader := gonfig.NewEnvLoader(gonfig.EnvLoaderConfig{
		Prefix: EnvPrefix(app),
	})
	found, err = envLoader.Load(cfg)
	switch {
	case err != nil:
		return errors.Wrap(err, "failed to decode configuration from environment variables")
	case found:
		log.Infof("configuration loaded from %d environment variables", len(envLoader.GetVars()))
	default:
		log.Debugf("no %s* environment variables defined", EnvPrefix(app))
	}

	return nil
}

// EnvPrefix turns an application name into its environment variable prefix.
func EnvPrefix(app string) string {
	envPrefix := strings.ReplaceAll(app, " ", "_")
	return strings.ToUpper(strings.ReplaceAll(envPrefix, "-", "_")) + "_"
}
