// Package identity resolves callers into capability sets. Operator
// capabilities (admin/confirmer/resolver) come from configured API keys;
// senders and relayers prove control of an address by signature.
package identity

import (
	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

type Capability string

const (
	CapSender    Capability = "sender"
	CapRelayer   Capability = "relayer"
	CapConfirmer Capability = "confirmer"
	CapResolver  Capability = "resolver"
	CapAdmin     Capability = "admin"
)

// Caller is a resolved identity: the address it controls plus its
// capability set.
type Caller struct {
	Address      common.Address
	Capabilities map[Capability]bool
}

func (c *Caller) Has(cap Capability) bool {
	return c != nil && c.Capabilities[cap]
}

// Require returns ErrUnauthorized unless the caller holds the capability.
func (c *Caller) Require(cap Capability) error {
	if !c.Has(cap) {
		return types.ErrUnauthorized
	}
	return nil
}

// Resolver maps an API key to operator capabilities.
type Resolver struct {
	keys map[string][]Capability
}

func NewResolver(adminKeys, confirmerKeys, resolverKeys []string) *Resolver {
	r := &Resolver{keys: make(map[string][]Capability)}
	for _, k := range adminKeys {
		r.keys[k] = append(r.keys[k], CapAdmin)
	}
	for _, k := range confirmerKeys {
		r.keys[k] = append(r.keys[k], CapConfirmer)
	}
	for _, k := range resolverKeys {
		r.keys[k] = append(r.keys[k], CapResolver)
	}
	return r
}

// Resolve builds the caller for a request. Every caller may act as a sender
// for its own address; signature verification for that address happens at
// the API boundary. An unknown key yields no operator capabilities.
func (r *Resolver) Resolve(address common.Address, apiKey string) *Caller {
	caps := map[Capability]bool{CapSender: true, CapRelayer: true}
	if apiKey != "" {
		for _, c := range r.keys[apiKey] {
			caps[c] = true
		}
	}
	return &Caller{Address: address, Capabilities: caps}
}
