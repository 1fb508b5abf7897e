package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func initConfig() *config.Config {
	return (&config.Config{App: app}).GetDefaults()
}

func loadConfig() {
	newCfg := initConfig()
	if err := newCfg.Load(app.Name, flags.config); err != nil {
		log.Fatal(err)
	}
	*cfg = *newCfg
}

// debugConfig logs the effective configuration, without secrets.
func debugConfig() {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	c := *cfg
	c.PubSub.Adapters = nil
	log.Debugf("effective configuration: %# v", pretty.Formatter(c))
}

func dumpConfig() {
	v, err := lookupConfig(cfg, flags.dump)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(string(b))
	os.Exit(0)
}

// lookupConfig returns the value at a dotted path of the YAML rendering of
// c, e.g. "recorder.formats.0.mimeType". "all" returns the whole document.
func lookupConfig(c *config.Config, key string) (interface{}, error) {
	var v interface{}
	y, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(y, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if key == "all" {
		return v, nil
	}

	for _, a := range strings.Split(key, ".") {
		switch node := v.(type) {
		case []interface{}:
			i, err := strconv.Atoi(a)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("no such config value: %s", key)
			}
			v = node[i]
		case map[string]interface{}:
			var ok bool
			if v, ok = node[a]; !ok {
				return nil, fmt.Errorf("no such config value: %s", key)
			}
		default:
			return nil, fmt.Errorf("no such config value: %s", key)
		}
	}
	if v == nil {
		return nil, fmt.Errorf("config value is empty: %s", key)
	}
	return v, nil
}
