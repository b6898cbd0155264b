package nextblock_go

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Region selects which nextblock relay the stream client connects to.
type Region int

const (
	RegionUnknown Region = iota
	RegionNewYork
	RegionFrankfurt
	RegionAmsterdam
	RegionLondon
	RegionSingapore
	RegionTokyo
	RegionSaltLakeCity
	RegionDublin
	RegionVilnius
)

var regionNames = map[Region]string{
	RegionUnknown:      "unknown",
	RegionNewYork:      "ny",
	RegionFrankfurt:    "fra",
	RegionAmsterdam:    "amsterdam",
	RegionLondon:       "london",
	RegionSingapore:    "singapore",
	RegionTokyo:        "tokyo",
	RegionSaltLakeCity: "slc",
	RegionDublin:       "dublin",
	RegionVilnius:      "vilnius",
}

// aliases accepted by ParseRegion in addition to the canonical names
var regionAliases = map[string]Region{
	"nyc":            RegionNewYork,
	"newyork":        RegionNewYork,
	"new_york":       RegionNewYork,
	"frankfurt":      RegionFrankfurt,
	"ams":            RegionAmsterdam,
	"lon":            RegionLondon,
	"sg":             RegionSingapore,
	"tyo":            RegionTokyo,
	"saltlakecity":   RegionSaltLakeCity,
	"salt_lake_city": RegionSaltLakeCity,
}

func (r Region) String() string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return "region(" + strconv.Itoa(int(r)) + ")"
}

// ParseRegion maps a selector such as "fra" or "NewYork" to a Region.
// Unrecognised selectors return RegionUnknown, which Resolve sends to the default relay.
func ParseRegion(s string) Region {
	key := strings.ToLower(strings.TrimSpace(s))
	for r, name := range regionNames {
		if name == key {
			return r
		}
	}
	if r, ok := regionAliases[key]; ok {
		return r
	}
	return RegionUnknown
}

// Endpoint is a relay host and port.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port. It doubles as the domain field of the auth message.
func (e Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.Address()
}

const streamPort = 22221

var (
	NewYork      = Endpoint{Host: "nyc.stream.nextblock.io", Port: streamPort}
	Frankfurt    = Endpoint{Host: "fra.stream.nextblock.io", Port: streamPort}
	Amsterdam    = Endpoint{Host: "amsterdam.stream.nextblock.io", Port: streamPort}
	London       = Endpoint{Host: "london.stream.nextblock.io", Port: streamPort}
	Singapore    = Endpoint{Host: "singapore.stream.nextblock.io", Port: streamPort}
	Tokyo        = Endpoint{Host: "tokyo.stream.nextblock.io", Port: streamPort}
	SaltLakeCity = Endpoint{Host: "slc.stream.nextblock.io", Port: streamPort}

	// DefaultEndpoint serves every region without an entry in the table.
	DefaultEndpoint = Frankfurt
)

// Dublin and Vilnius relays are announced but not yet in service, so they
// deliberately have no entry here.
var endpoints = map[Region]Endpoint{
	RegionNewYork:      NewYork,
	RegionFrankfurt:    Frankfurt,
	RegionAmsterdam:    Amsterdam,
	RegionLondon:       London,
	RegionSingapore:    Singapore,
	RegionTokyo:        Tokyo,
	RegionSaltLakeCity: SaltLakeCity,
}

// Lookup returns the endpoint for region. The bool is false when the region
// has no mapping and DefaultEndpoint was returned instead.
func Lookup(region Region) (Endpoint, bool) {
	if ep, ok := endpoints[region]; ok {
		return ep, true
	}
	return DefaultEndpoint, false
}

// Resolve is Lookup with the fallback logged.
func Resolve(region Region) Endpoint {
	ep, ok := Lookup(region)
	if !ok {
		log.Println("Nextblock", fmt.Sprintf("No relay mapped for region %s, falling back to %s", region, ep))
	}
	return ep
}
