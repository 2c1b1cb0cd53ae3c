package main

import (
	"os"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/routing"
)

// Config holds the router settings. Flags override what the file sets.
type Config struct {
	Listen string `yaml:"listen"`
	PBF    string `yaml:"pbf"`
	// Zoom level of the streaming cells
	Zoom  int  `yaml:"zoom"`
	Debug bool `yaml:"debug"`

	Focus struct {
		Lat    float64 `yaml:"lat"`
		Lon    float64 `yaml:"lon"`
		Radius int     `yaml:"radius"`
	} `yaml:"focus"`

	Positioner struct {
		MaxDistanceMeters          float64 `yaml:"max_distance_meters"`
		MaxHeadingDeviationDegrees float64 `yaml:"max_heading_deviation_degrees"`
	} `yaml:"positioner"`

	MetricsLogInterval time.Duration `yaml:"metrics_log_interval"`
}

// DefaultConfig returns the settings used when no file is given
func DefaultConfig() Config {
	var c Config
	c.Listen = ":8080"
	c.PBF = "./data/example.osm.pbf"
	c.Zoom = 14
	c.Focus.Radius = 2
	defaults := routing.DefaultPositionerOptions()
	c.Positioner.MaxDistanceMeters = defaults.MaxDistanceToMatchedPointMeters
	c.Positioner.MaxHeadingDeviationDegrees = defaults.MaxHeadingDeviationToMatchedPointDegrees
	c.MetricsLogInterval = 30 * time.Second
	return c
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.Zoom < 0 || c.Zoom > int(network.MaxZoom) {
		return errors.Errorf("zoom %d outside [0, %d]", c.Zoom, network.MaxZoom)
	}
	if c.Focus.Radius < 0 {
		return errors.Errorf("negative focus radius %d", c.Focus.Radius)
	}
	if err := c.positionerOptions(network.Road, 0, 0).Validate(); err != nil {
		return errors.Wrap(err, "positioner")
	}
	if c.MetricsLogInterval < 0 {
		return errors.Errorf("negative metrics log interval %s", c.MetricsLogInterval)
	}
	return nil
}

func (c Config) zoom() maptile.Zoom {
	return maptile.Zoom(c.Zoom)
}

func (c Config) positionerOptions(net network.NetworkType, lat, lon float64) routing.PositionerOptions {
	return routing.PositionerOptions{
		Network:                                  net,
		Latitude:                                 lat,
		Longitude:                                lon,
		MaxDistanceToMatchedPointMeters:          c.Positioner.MaxDistanceMeters,
		MaxHeadingDeviationToMatchedPointDegrees: c.Positioner.MaxHeadingDeviationDegrees,
	}
}
