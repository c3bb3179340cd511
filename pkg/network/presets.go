// pkg/network/presets.go
package network

import (
	"fmt"
	"sort"
	"strings"
)

// Preset holds the well-known connection settings of a network.
type Preset struct {
	Name        string `json:"name" toml:"name"`
	Passphrase  string `json:"passphrase" toml:"passphrase"`
	RPCEndpoint string `json:"rpcEndpoint" toml:"rpc_endpoint"`
	HorizonURL  string `json:"horizonUrl" toml:"horizon_url"`
}

// Built-in network presets.
var presets = map[string]Preset{
	"testnet": {
		Name:        "testnet",
		Passphrase:  "Test SDF Network ; September 2015",
		RPCEndpoint: "https://soroban-testnet.stellar.org",
		HorizonURL:  "https://horizon-testnet.stellar.org",
	},
	"mainnet": {
		Name:        "mainnet",
		Passphrase:  "Public Global Stellar Network ; September 2015",
		RPCEndpoint: "https://mainnet.sorobanrpc.com",
		HorizonURL:  "https://horizon.stellar.org",
	},
	"futurenet": {
		Name:        "futurenet",
		Passphrase:  "Test SDF Future Network ; October 2022",
		RPCEndpoint: "https://rpc-futurenet.stellar.org",
		HorizonURL:  "https://horizon-futurenet.stellar.org",
	},
	"standalone": {
		Name:        "standalone",
		Passphrase:  "Standalone Network ; February 2017",
		RPCEndpoint: "http://localhost:8000/soroban/rpc",
		HorizonURL:  "http://localhost:8000",
	},
}

// LookupPreset returns the preset registered under name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("unknown network %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames returns the sorted names of the built-in presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve fills the request's endpoint and passphrase from the preset when they are unset.
// The request itself is not modified.
func Resolve(req *InvocationRequest, overrides map[string]Preset) (Preset, error) {
	if req == nil {
		return Preset{}, fmt.Errorf("request is required")
	}
	p, ok := overrides[strings.ToLower(req.Network)]
	if !ok {
		var err error
		p, err = LookupPreset(req.Network)
		if err != nil && (req.RPCEndpoint == "" || req.NetworkPassphrase == "") {
			return Preset{}, err
		}
		p.Name = req.Network
	}
	if req.RPCEndpoint != "" {
		p.RPCEndpoint = req.RPCEndpoint
	}
	if req.NetworkPassphrase != "" {
		p.Passphrase = req.NetworkPassphrase
	}
	if p.RPCEndpoint == "" {
		return Preset{}, fmt.Errorf("RPC endpoint is required for network %q", req.Network)
	}
	if p.Passphrase == "" {
		return Preset{}, fmt.Errorf("network passphrase is required for network %q", req.Network)
	}
	return p, nil
}
