package network

import "github.com/pkg/errors"

// NetworkType is the kind of transport network an entity belongs to.
type NetworkType uint8

// The zero value is no network, so a zero id is never mistaken for a real one.
const (
	UndefinedNetwork = NetworkType(iota)
	Road
	Rail
	Tram
)

// NetworkTypes lists every network type.
var NetworkTypes = []NetworkType{Road, Rail, Tram}

func (n NetworkType) String() string {
	switch n {
	case Road:
		return "road"
	case Rail:
		return "rail"
	case Tram:
		return "tram"
	default:
		return "undefined"
	}
}

// Valid reports whether n is one of the known network types.
func (n NetworkType) Valid() bool {
	return n >= Road && n <= Tram
}

// ParseNetworkType is the inverse of NetworkType.String.
func ParseNetworkType(s string) (NetworkType, error) {
	for _, n := range NetworkTypes {
		if n.String() == s {
			return n, nil
		}
	}
	return UndefinedNetwork, errors.Errorf("unknown network type %q", s)
}
