// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/gogpu/gputypes"
	"golang.org/x/crypto/sha3"
)

// ContentKey derives a content identifier from the parts that determine an
// artifact (source id, level of detail, quality, ...). Each part is length
// prefixed so ("ab", "c") and ("a", "bc") produce different keys.
func ContentKey(parts ...[]byte) string {
	h := sha3.New256()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		_, _ = h.Write(n[:]) // hash.Hash.Write never returns an error
		_, _ = h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentKeyString is ContentKey over string parts.
func ContentKeyString(parts ...string) string {
	b := make([][]byte, len(parts))
	for i, p := range parts {
		b[i] = []byte(p)
	}
	return ContentKey(b...)
}

// BytesPerTexel returns the storage size of one texel of format.
// Unknown formats are treated as 4 bytes.
func BytesPerTexel(format gputypes.TextureFormat) int64 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// TextureSize returns the byte size of a decoded texture.
// A zero depth counts as one layer.
func TextureSize(format gputypes.TextureFormat, extent gputypes.Extent3D) int64 {
	layers := int64(extent.DepthOrArrayLayers)
	if layers == 0 {
		layers = 1
	}
	return int64(extent.Width) * int64(extent.Height) * layers * BytesPerTexel(format)
}
