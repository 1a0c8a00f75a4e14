package relay

// RelayInfo describes one relay in the recommended set and what it is
// eligible for.
type RelayInfo struct {
	URL   string
	Read  bool
	Write bool
}

// Well-known public relays used when a caller does not name targets.
// The NWC client never touches these - it always uses the relay the
// wallet designated.
var recommendedRelays = []RelayInfo{
	{URL: "wss://relay.damus.io", Read: true, Write: true},
	{URL: "wss://relay.nostr.band", Read: true, Write: true},
	{URL: "wss://relay.primal.net", Read: true, Write: true},
	{URL: "wss://nos.lol", Read: true, Write: false},
	{URL: "wss://nostr.mom", Read: true, Write: false},
}

// RecommendedRelays returns a copy of the default relay set
func RecommendedRelays() []RelayInfo {
	out := make([]RelayInfo, len(recommendedRelays))
	copy(out, recommendedRelays)
	return out
}

// ReadRelayURLs returns the default relays eligible for fetching
func ReadRelayURLs() []string {
	var urls []string
	for _, r := range recommendedRelays {
		if r.Read {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// WriteRelayURLs returns the default relays eligible for publishing
func WriteRelayURLs() []string {
	var urls []string
	for _, r := range recommendedRelays {
		if r.Write {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
