// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"fmt"
	"sync"
	"time"

	"github.com/TheBaxes/slurm/lib/protocol"
)

// Identity names one credential.
type Identity struct {
	JobID    uint32
	StepID   uint32
	IssuedAt int64
}

// IdentityOf returns the identity of credential.
func IdentityOf(credential *protocol.JobCredential) Identity {
	return Identity{
		JobID:    credential.JobID,
		StepID:   credential.StepID,
		IssuedAt: credential.IssuedAt,
	}
}

func (id Identity) String() string {
	return fmt.Sprintf("%d.%d@%d", id.JobID, id.StepID, id.IssuedAt)
}

// Cache is the set of revoked credential identities, shared by every
// RPC worker. Entries are never removed.
type Cache struct {
	mu      sync.RWMutex
	revoked map[Identity]time.Time
}

func NewCache() *Cache {
	return &Cache{revoked: make(map[Identity]time.Time)}
}

// Revoke marks id revoked. It reports whether id was newly revoked;
// revoking an identity again keeps the original revocation time.
func (c *Cache) Revoke(id Identity, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.revoked[id]; exists {
		return false
	}
	c.revoked[id] = at
	return true
}

// IsRevoked reports whether id has been revoked.
func (c *Cache) IsRevoked(id Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[id]
	return exists
}

// Len returns the number of revoked identities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.revoked)
}
