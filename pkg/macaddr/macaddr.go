// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package macaddr canonicalizes MAC address text.
//
// The cloud API reports MACs with dashes, the local discovery protocol embeds
// them with dashes or colons inside reply payloads, and OS neighbor tables
// print them with colons. Every match in the resolver compares normalized
// forms; comparing raw forms is a correctness bug.
package macaddr

import "strings"

// Normalize returns the MAC address as lowercase hex with no separators.
// It is a pure text transform: idempotent, never fails, and does not
// validate that the input is a well-formed MAC.
func Normalize(mac string) string {
	r := strings.NewReplacer(":", "", "-", "")
	return strings.ToLower(r.Replace(mac))
}
