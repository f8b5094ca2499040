package types

import "fmt"

// MAC is a 6-byte hardware address, used for BSSIDs and client addresses
// carried across the event bus.
type MAC [6]byte

// IsZero reports whether m is the all-zero "match any" / "unset" address.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		m[0], m[1], m[2], m[3], m[4], m[5])
}
