package osm

import (
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"github.com/qedus/osmpbf"
	"go.uber.org/zap"

	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/streaming"
)

// LoadOsmFile reads a PBF extract and splits its road, rail and tram ways at junctions.
func LoadOsmFile(filePath string, logger *zap.Logger) (*OsmGraph, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open pbf")
	}
	defer f.Close()
	return Decode(f, logger)
}

// Decode reads PBF data from r.
func Decode(r io.Reader, logger *zap.Logger) (*OsmGraph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := osmpbf.NewDecoder(r)

	// use more memory from the start, it is faster
	d.SetBufferSize(osmpbf.MaxBlobSize)

	// start decoding with several goroutines, it is faster
	if err := d.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, errors.Wrap(err, "start pbf decoder")
	}

	c := newCollector(logger)
	var rc uint64
	for {
		v, err := d.Decode()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "decode pbf")
		}
		switch v := v.(type) {
		case *osmpbf.Node:
			c.addNode(v)
		case *osmpbf.Way:
			c.addWay(v)
		case *osmpbf.Relation:
			// we ignore relations for now
			rc++
		default:
			return nil, errors.Errorf("unknown type %T", v)
		}
	}
	logger.Info("decoded pbf",
		zap.Int("nodes", len(c.nodes)), zap.Int("ways", len(c.ways)), zap.Uint64("relations", rc))
	return c.build(), nil
}

type keptWay struct {
	way     *OsmWay
	profile Profile
}

type networkNode struct {
	network network.NetworkType
	id      OsmNodeId
}

// collector accumulates decoded entities until every way has been seen
type collector struct {
	logger  *zap.Logger
	nodes   map[int64]*OsmNode
	ways    []keptWay
	dropped int
}

func newCollector(logger *zap.Logger) *collector {
	return &collector{logger: logger, nodes: make(map[int64]*OsmNode)}
}

func (c *collector) addNode(v *osmpbf.Node) {
	c.nodes[v.ID] = &OsmNode{
		ID:  OsmNodeId(v.ID),
		Lat: v.Lat,
		Lon: v.Lon,
	}
}

func (c *collector) addWay(v *osmpbf.Way) {
	profile, ok := ProfileOf(v.Tags)
	if !ok || len(v.NodeIDs) < 2 {
		c.dropped++
		return
	}
	nodeIDs := make([]OsmNodeId, len(v.NodeIDs))
	for i, id := range v.NodeIDs {
		nodeIDs[i] = OsmNodeId(id)
	}
	c.ways = append(c.ways, keptWay{
		way:     &OsmWay{ID: OsmWayId(v.ID), Nodes: nodeIDs, Tags: v.Tags},
		profile: profile,
	})
}

func (c *collector) build() *OsmGraph {
	c.logger.Info("filtered ways", zap.Int("dropped", c.dropped), zap.Int("kept", len(c.ways)))
	sort.Slice(c.ways, func(i, j int) bool { return c.ways[i].way.ID < c.ways[j].way.ID })

	// 1. Identify junctions: way ends and nodes shared by more than one way of the same network
	nodeWayCount := make(map[networkNode]int)
	usedNodeIDs := make(map[OsmNodeId]struct{})
	for _, kw := range c.ways {
		for _, nid := range kw.way.Nodes {
			nodeWayCount[networkNode{network: kw.profile.Network, id: nid}]++
			usedNodeIDs[nid] = struct{}{}
		}
	}

	// 2. Remove any nodes not used in the remaining ways
	filteredNodes := make(map[int64]*OsmNode, len(usedNodeIDs))
	for id, node := range c.nodes {
		if _, ok := usedNodeIDs[OsmNodeId(id)]; ok {
			filteredNodes[id] = node
		}
	}
	c.logger.Info("filtered nodes", zap.Int("dropped", len(c.nodes)-len(filteredNodes)), zap.Int("kept", len(filteredNodes)))

	// 3. Break every way into segments between junctions
	result := make([]streaming.SourceWay, 0, len(c.ways))
	var newWayID int64 = 1
	var missing int
	for _, kw := range c.ways {
		nodes := make([]OsmNodeId, 0, len(kw.way.Nodes))
		for _, nid := range kw.way.Nodes {
			if _, ok := filteredNodes[int64(nid)]; ok {
				nodes = append(nodes, nid)
			} else {
				missing++
			}
		}
		segStart := 0
		for i := 1; i < len(nodes); i++ {
			last := i == len(nodes)-1
			if !last && nodeWayCount[networkNode{network: kw.profile.Network, id: nodes[i]}] < 2 {
				continue
			}
			segment := nodes[segStart : i+1]
			segStart = i
			if kw.profile.Reversed {
				segment = reversed(segment)
			}
			line := buildLineString(segment, filteredNodes)
			if len(line) < 2 {
				continue
			}
			result = append(result, streaming.SourceWay{
				ID:                       newWayID,
				Network:                  kw.profile.Network,
				From:                     int64(segment[0]),
				To:                       int64(segment[len(segment)-1]),
				Line:                     line,
				Direction:                kw.profile.Direction,
				Classification:           kw.profile.Classification,
				HalfWidthMeters:          kw.profile.HalfWidthMeters,
				AverageSpeedKph:          kw.profile.AverageSpeedKph,
				ApproximateSpeedLimitKph: kw.profile.ApproximateSpeedLimitKph,
			})
			newWayID++
		}
	}
	if missing > 0 {
		c.logger.Warn("way nodes missing from extract", zap.Int("count", missing))
	}
	c.logger.Info("split ways at junctions", zap.Int("source_ways", len(result)))
	return &OsmGraph{Nodes: filteredNodes, Ways: result}
}

func reversed(ids []OsmNodeId) []OsmNodeId {
	out := make([]OsmNodeId, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
