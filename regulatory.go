package wcm

// defaultAllowedChannels is the fallback 11d/region table used when no
// policy is supplied to New (spec §1: "the region/11d tables" are an
// external collaborator; the core only consumes an allowed-channel
// predicate). It covers the 2.4GHz ISM band channels 1-11, the common
// default for an unconfigured region.
var defaultAllowedChannels = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

func defaultRegulatoryAllowed(channel int) bool {
	for _, c := range defaultAllowedChannels {
		if c == channel {
			return true
		}
	}
	return false
}

// AllowedChannelList returns a sorted copy of the channels defaultRegulatoryAllowed
// permits, for embedders that want to present it as an ACS candidate set
// without supplying their own regulatory policy.
func AllowedChannelList() []int {
	out := make([]int, len(defaultAllowedChannels))
	copy(out, defaultAllowedChannels)
	return out
}
