// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package configless

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Kind identifies one config blob in a Bundle.
type Kind int

const (
	KindMain Kind = iota
	KindAcctGather
	KindCgroup
	KindCgroupAllowedDevices
	KindExtSensors
	KindGres
	KindKnlCray
	KindKnlGeneric
	KindPlugstack
	KindTopology

	kindCount
)

var kindFilenames = [kindCount]string{
	KindMain:                 "slurm.conf",
	KindAcctGather:           "acct_gather.conf",
	KindCgroup:               "cgroup.conf",
	KindCgroupAllowedDevices: "cgroup_allowed_devices_file.conf",
	KindExtSensors:           "ext_sensors.conf",
	KindGres:                 "gres.conf",
	KindKnlCray:              "knl_cray.conf",
	KindKnlGeneric:           "knl_generic.conf",
	KindPlugstack:            "plugstack.conf",
	KindTopology:             "topology.conf",
}

// Kinds returns every kind in persist order.
func Kinds() []Kind {
	kinds := make([]Kind, kindCount)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// Filename is the fixed name the kind is cached under.
func (k Kind) Filename() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind-%d", int(k))
	}
	return kindFilenames[k]
}

func (k Kind) String() string { return k.Filename() }

// Bundle is the set of config blobs a node needs. A nil field means the
// kind is not required here; an empty string is a present, empty file.
type Bundle struct {
	Main                 *string `cbor:"1,keyasint,omitempty"`
	AcctGather           *string `cbor:"2,keyasint,omitempty"`
	Cgroup               *string `cbor:"3,keyasint,omitempty"`
	CgroupAllowedDevices *string `cbor:"4,keyasint,omitempty"`
	ExtSensors           *string `cbor:"5,keyasint,omitempty"`
	Gres                 *string `cbor:"6,keyasint,omitempty"`
	KnlCray              *string `cbor:"7,keyasint,omitempty"`
	KnlGeneric           *string `cbor:"8,keyasint,omitempty"`
	Plugstack            *string `cbor:"9,keyasint,omitempty"`
	Topology             *string `cbor:"10,keyasint,omitempty"`
}

func (b *Bundle) field(kind Kind) **string {
	switch kind {
	case KindMain:
		return &b.Main
	case KindAcctGather:
		return &b.AcctGather
	case KindCgroup:
		return &b.Cgroup
	case KindCgroupAllowedDevices:
		return &b.CgroupAllowedDevices
	case KindExtSensors:
		return &b.ExtSensors
	case KindGres:
		return &b.Gres
	case KindKnlCray:
		return &b.KnlCray
	case KindKnlGeneric:
		return &b.KnlGeneric
	case KindPlugstack:
		return &b.Plugstack
	case KindTopology:
		return &b.Topology
	}
	panic(fmt.Sprintf("configless: unknown kind %d", int(kind)))
}

// Get returns the blob for kind, or nil when absent.
func (b *Bundle) Get(kind Kind) *string {
	return *b.field(kind)
}

// Set stores content for kind. A nil content marks the kind absent.
func (b *Bundle) Set(kind Kind, content *string) {
	*b.field(kind) = content
}

// Present lists the kinds with a blob, in persist order.
func (b *Bundle) Present() []Kind {
	var present []Kind
	for _, kind := range Kinds() {
		if b.Get(kind) != nil {
			present = append(present, kind)
		}
	}
	return present
}

// bundleDomainKey keys the digest so it cannot collide with BLAKE3
// hashes computed for other purposes.
var bundleDomainKey = [32]byte{
	's', 'l', 'u', 'r', 'm', 'd', '.', 'c', 'o', 'n', 'f', 'i', 'g', '.',
	'b', 'u', 'n', 'd', 'l', 'e',
}

// Digest returns a hex BLAKE3 digest over the present blobs. Two
// bundles have the same digest exactly when the same kinds are present
// with the same contents.
func (b *Bundle) Digest() string {
	hasher, err := blake3.NewKeyed(bundleDomainKey[:])
	if err != nil {
		panic("configless: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var header [9]byte
	for _, kind := range b.Present() {
		content := *b.Get(kind)
		header[0] = byte(kind)
		binary.BigEndian.PutUint64(header[1:], uint64(len(content)))
		hasher.Write(header[:])
		hasher.Write([]byte(content))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
