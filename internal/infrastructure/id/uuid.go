// Package id provides the order id generator.
package id

import "github.com/google/uuid"

// UUIDGenerator issues random (v4) UUIDs with a type prefix, e.g. "ord_<uuid>".
type UUIDGenerator struct {
	Prefix string
}

func NewUUIDGenerator(prefix string) UUIDGenerator {
	return UUIDGenerator{Prefix: prefix}
}

func (g UUIDGenerator) NewID() string {
	return g.Prefix + uuid.NewString()
}
