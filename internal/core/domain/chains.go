package domain

import "strings"

// Network is the human-readable chain name a job scans, e.g. "Sepolia".
type Network string

const (
	NetworkEthereum Network = "Ethereum"
	NetworkSepolia  Network = "Sepolia"
	NetworkBNB      Network = "BNB"
	NetworkLocal    Network = "Local"
)

// DefaultNetworks is used when configuration lists none.
var DefaultNetworks = []Network{
	NetworkEthereum,
	NetworkSepolia,
	NetworkBNB,
	NetworkLocal,
}

// NetworkSet is the set of networks jobs may be created on.
// Lookups are case-insensitive and return the configured spelling.
type NetworkSet struct {
	names []Network
	index map[string]Network
}

// NewNetworkSet builds a set from names, skipping blanks and duplicates.
func NewNetworkSet(names ...Network) *NetworkSet {
	s := &NetworkSet{index: make(map[string]Network, len(names))}
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(string(n)))
		if key == "" {
			continue
		}
		if _, ok := s.index[key]; ok {
			continue
		}
		canonical := Network(strings.TrimSpace(string(n)))
		s.index[key] = canonical
		s.names = append(s.names, canonical)
	}
	return s
}

// Lookup returns the canonical network for name.
func (s *NetworkSet) Lookup(name string) (Network, bool) {
	n, ok := s.index[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// Names returns networks in configuration order.
func (s *NetworkSet) Names() []Network {
	out := make([]Network, len(s.names))
	copy(out, s.names)
	return out
}
