package network

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

// MaxZoom is the deepest tile level a CellKey can encode.
const MaxZoom = maptile.Zoom(29)

const zoomShift = 58

// ErrInvalidCellKey is returned when a cell key cannot be parsed or built.
var ErrInvalidCellKey = errors.New("invalid cell key")

// CellKey identifies a map tile. The low bits hold the tile's quadkey (a Morton code of x and y),
// the top bits its zoom, so keys of different levels never collide.
type CellKey uint64

// NewCellKey returns the key of a tile.
func NewCellKey(t maptile.Tile) (CellKey, error) {
	if t.Z > MaxZoom || !t.Valid() {
		return 0, errors.Wrapf(ErrInvalidCellKey, "tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	return CellKey(uint64(t.Z)<<zoomShift | t.Quadkey()), nil
}

// CellAt returns the key of the tile at zoom z containing the lon/lat point.
func CellAt(ll orb.Point, z maptile.Zoom) CellKey {
	if z > MaxZoom {
		z = MaxZoom
	}
	t := maptile.At(ll, z)
	return CellKey(uint64(t.Z)<<zoomShift | t.Quadkey())
}

// Zoom returns the tile level of the cell.
func (k CellKey) Zoom() maptile.Zoom {
	return maptile.Zoom(uint64(k) >> zoomShift)
}

// Tile returns the map tile the key denotes.
func (k CellKey) Tile() maptile.Tile {
	return maptile.FromQuadkey(uint64(k)&(1<<zoomShift-1), k.Zoom())
}

// Bound returns the lon/lat extent of the cell.
func (k CellKey) Bound() orb.Bound {
	return k.Tile().Bound()
}

// String renders the key as "z/x/y".
func (k CellKey) String() string {
	t := k.Tile()
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// ParseCellKey is the inverse of CellKey.String.
func ParseCellKey(s string) (CellKey, error) {
	var z, x, y uint32
	n, err := fmt.Sscanf(s, "%d/%d/%d", &z, &x, &y)
	if err != nil || n != 3 {
		return 0, errors.Wrapf(ErrInvalidCellKey, "parse %q", s)
	}
	return NewCellKey(maptile.New(x, y, maptile.Zoom(z)))
}

// Neighbors returns the cells within radius tiles of k in x and y, k included, in key order.
// Columns wrap around the antimeridian; rows stop at the poles.
func (k CellKey) Neighbors(radius int) []CellKey {
	t := k.Tile()
	n := int64(1) << uint(t.Z)
	seen := make(map[CellKey]struct{})
	keys := make([]CellKey, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		y := int64(t.Y) + int64(dy)
		if y < 0 || y >= n {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := ((int64(t.X)+int64(dx))%n + n) % n
			key := CellKey(uint64(t.Z)<<zoomShift | maptile.New(uint32(x), uint32(y), t.Z).Quadkey())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
