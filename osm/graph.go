package osm

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/streaming"
)

type OsmWayId int64

type OsmNodeId int64

type OsmNode struct {
	ID  OsmNodeId
	Lat float64
	Lon float64
}

type OsmWay struct {
	ID    OsmWayId
	Nodes []OsmNodeId
	Tags  map[string]string
}

// Profile is how an OSM way is carried on a transport network
type Profile struct {
	Network                  network.NetworkType
	Classification           string
	Direction                network.WayDirection
	Reversed                 bool // one-way against the node order
	HalfWidthMeters          float64
	AverageSpeedKph          float64
	ApproximateSpeedLimitKph float64
}

type highwayDefaults struct {
	lanes     float64
	limitKph  float64
	avgFactor float64
	oneWay    bool
}

var highwayTypes = map[string]highwayDefaults{
	"motorway":       {lanes: 2, limitKph: 110, avgFactor: 0.85, oneWay: true},
	"motorway_link":  {lanes: 1, limitKph: 60, avgFactor: 0.75, oneWay: true},
	"trunk":          {lanes: 2, limitKph: 90, avgFactor: 0.8},
	"trunk_link":     {lanes: 1, limitKph: 50, avgFactor: 0.7},
	"primary":        {lanes: 2, limitKph: 60, avgFactor: 0.7},
	"primary_link":   {lanes: 1, limitKph: 50, avgFactor: 0.7},
	"secondary":      {lanes: 2, limitKph: 50, avgFactor: 0.7},
	"secondary_link": {lanes: 1, limitKph: 50, avgFactor: 0.7},
	"tertiary":       {lanes: 1, limitKph: 50, avgFactor: 0.65},
	"tertiary_link":  {lanes: 1, limitKph: 40, avgFactor: 0.65},
	"residential":    {lanes: 1, limitKph: 30, avgFactor: 0.6},
	"service":        {lanes: 1, limitKph: 20, avgFactor: 0.5},
	"living_street":  {lanes: 1, limitKph: 10, avgFactor: 0.5},
}

var railwayTypes = map[string]network.NetworkType{
	"rail":         network.Rail,
	"light_rail":   network.Rail,
	"subway":       network.Rail,
	"narrow_gauge": network.Rail,
	"tram":         network.Tram,
}

const (
	laneWidthMeters      = 3.5
	trackHalfWidthMeters = 0.7175 // standard gauge
	railLimitKph         = 100
	tramLimitKph         = 50
	mphToKph             = 1.609344
)

// ProfileOf returns the network profile of a way from its tags, or false if no network carries it.
func ProfileOf(tags map[string]string) (Profile, bool) {
	if hw, ok := highwayTypes[tags["highway"]]; ok {
		p := Profile{
			Network:        network.Road,
			Classification: tags["highway"],
			Direction:      network.Bidirectional,
		}
		p.ApproximateSpeedLimitKph = hw.limitKph
		if v, ok := parseMaxSpeed(tags["maxspeed"]); ok {
			p.ApproximateSpeedLimitKph = v
		}
		p.AverageSpeedKph = p.ApproximateSpeedLimitKph * hw.avgFactor

		switch {
		case tags["oneway"] == "-1" || tags["oneway"] == "reverse":
			p.Direction, p.Reversed = network.OneWay, true
		case isOneWay(tags["oneway"]) || tags["junction"] == "roundabout":
			p.Direction = network.OneWay
		case tags["oneway"] == "no":
		case hw.oneWay:
			p.Direction = network.OneWay
		}

		// default lanes are per direction, the lanes tag counts the whole carriageway
		lanes := hw.lanes
		if p.Direction != network.OneWay {
			lanes *= 2
		}
		if v, err := strconv.ParseFloat(tags["lanes"], 64); err == nil && v > 0 {
			lanes = v
		}
		p.HalfWidthMeters = lanes * laneWidthMeters / 2
		if closed(tags) {
			p.Direction = network.ClosedInBothDirections
		}
		return p, true
	}

	if net, ok := railwayTypes[tags["railway"]]; ok {
		p := Profile{
			Network:                  net,
			Classification:           tags["railway"],
			Direction:                network.Bidirectional,
			HalfWidthMeters:          trackHalfWidthMeters,
			ApproximateSpeedLimitKph: railLimitKph,
		}
		if net == network.Tram {
			p.ApproximateSpeedLimitKph = tramLimitKph
		}
		if v, ok := parseMaxSpeed(tags["maxspeed"]); ok {
			p.ApproximateSpeedLimitKph = v
		}
		p.AverageSpeedKph = p.ApproximateSpeedLimitKph * 0.7
		if tags["oneway"] == "-1" {
			p.Direction, p.Reversed = network.OneWay, true
		} else if isOneWay(tags["oneway"]) {
			p.Direction = network.OneWay
		}
		return p, true
	}
	return Profile{}, false
}

func isOneWay(v string) bool {
	return v == "yes" || v == "1" || v == "true"
}

func closed(tags map[string]string) bool {
	switch tags["access"] {
	case "no", "private":
		return true
	}
	return tags["motor_vehicle"] == "no"
}

// parseMaxSpeed reads "50", "50 km/h" or "30 mph"
func parseMaxSpeed(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	factor := 1.0
	if strings.HasSuffix(v, "mph") {
		factor = mphToKph
		v = strings.TrimSpace(strings.TrimSuffix(v, "mph"))
	}
	v = strings.TrimSpace(strings.TrimSuffix(v, "km/h"))
	speed, err := strconv.ParseFloat(v, 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed * factor, true
}

// OsmGraph is the filtered OSM data, split at junctions into source ways.
type OsmGraph struct {
	Nodes map[int64]*OsmNode
	Ways  []streaming.SourceWay
}

// buildLineString creates a LineString geometry from a slice of node IDs
func buildLineString(nodeIDs []OsmNodeId, nodes map[int64]*OsmNode) orb.LineString {
	geom := make(orb.LineString, 0, len(nodeIDs))
	for _, nid := range nodeIDs {
		if node, ok := nodes[int64(nid)]; ok {
			geom = append(geom, orb.Point{node.Lon, node.Lat})
		}
	}
	return geom
}
