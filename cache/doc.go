// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cache stores decoded render artifacts under a global byte budget.
//
// Entries carry a size, a priority tier and access statistics. When an
// insertion would exceed the budget, the cache evicts the single least
// valuable entry, re-checks, and repeats, so the fewest entries are sacrificed.
//
//	c := cache.New(64<<20, cache.Hybrid)
//	c.Set(key, tex, cache.TextureSize(format, extent), priority.High)
//	tex, ok := c.Get(key)
//
// # Strategies
//
// The eviction strategy is chosen once, at construction:
//   - Hybrid (default): tier weight*100 + frequency/10 - minutes since access
//   - LRU: oldest access first, O(1)
//   - LFU: lowest decayed frequency first
//   - Priority: least urgent tier first, then oldest
//
// The frequency score halves every ten minutes without access and grows by one
// on every Get or Set, so it measures recent popularity rather than a lifetime
// count.
//
// # Keys
//
// ContentKey hashes the inputs that determine an artifact with SHA3-256.
// TextureSize estimates the byte size of a texture from its format and extent.
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
