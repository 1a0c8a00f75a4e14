package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"nwc-core/nostr"
)

const profileCacheTTL = 10 * time.Minute

// Profile is the parsed content of a kind-0 profile metadata event
type Profile struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Nip05       string `json:"nip05,omitempty"`
	Lud16       string `json:"lud16,omitempty"`
}

// FetchEvents opens the filter against every target relay in parallel
// and returns the union of results, deduplicated by event ID. Each
// relay contributes until it signals EOSE or the per-relay window
// elapses; a relay that cannot be reached is skipped. With no explicit
// targets the recommended read relays are used.
func (p *Pool) FetchEvents(ctx context.Context, filter nostr.Filter, relayURLs []string) []nostr.Event {
	if len(relayURLs) == 0 {
		relayURLs = ReadRelayURLs()
	}

	var wg sync.WaitGroup
	eventChan := make(chan nostr.Event, 1000)

	for _, relayURL := range relayURLs {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			p.fetchFromRelay(ctx, target, filter, eventChan)
		}(relayURL)
	}

	go func() {
		wg.Wait()
		close(eventChan)
	}()

	seen := make(map[string]bool)
	var events []nostr.Event
	for event := range eventChan {
		if seen[event.ID] {
			continue
		}
		seen[event.ID] = true
		events = append(events, event)
	}

	// Newest first, ID as tie-break
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID > events[j].ID
	})

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}

	return events
}

// fetchFromRelay streams one relay's matching events into out until
// EOSE, the fetch window, or ctx - whichever ends first. Connection
// failures are absorbed: partial relay failure must not fail the fetch.
func (p *Pool) fetchFromRelay(ctx context.Context, relayURL string, filter nostr.Filter, out chan<- nostr.Event) {
	conn, err := p.Connect(ctx, relayURL)
	if err != nil {
		slog.Debug("relay: fetch skipping unreachable relay", "relay", relayURL, "error", err)
		return
	}

	sub, err := conn.Subscribe(filter)
	if err != nil {
		slog.Debug("relay: fetch subscribe failed", "relay", relayURL, "error", err)
		return
	}
	defer conn.Unsubscribe(sub)

	timer := time.NewTimer(p.fetchTimeout)
	defer timer.Stop()

	for {
		select {
		case event := <-sub.Events:
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		case <-sub.EOSE:
			// Stored events precede EOSE on the wire, so anything the
			// relay sent is already buffered - drain before returning
			drainEvents(ctx, sub, out)
			return
		case <-sub.Done:
			drainEvents(ctx, sub, out)
			return
		case <-timer.C:
			slog.Debug("relay: fetch window elapsed", "relay", relayURL)
			drainEvents(ctx, sub, out)
			return
		case <-ctx.Done():
			return
		}
	}
}

func drainEvents(ctx context.Context, sub *Subscription, out chan<- nostr.Event) {
	for {
		select {
		case event := <-sub.Events:
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		default:
			return
		}
	}
}

// FetchProfile returns the newest profile metadata for a pubkey, or nil
// when no relay has one or the content does not parse. Malformed
// upstream content is never an error.
func (p *Pool) FetchProfile(ctx context.Context, pubkey string, relayURLs []string) *Profile {
	cacheKey := "profile:" + pubkey

	if p.profileCache != nil {
		if data, found, err := p.profileCache.Get(ctx, cacheKey); err == nil && found {
			var profile Profile
			if err := json.Unmarshal(data, &profile); err == nil {
				return &profile
			}
		}
	}

	filter := nostr.Filter{
		Authors: []string{pubkey},
		Kinds:   []int{nostr.KindProfileMetadata},
		Limit:   1,
	}

	events := p.FetchEvents(ctx, filter, relayURLs)
	if len(events) == 0 {
		return nil
	}

	// FetchEvents sorts newest first
	var profile Profile
	if err := json.Unmarshal([]byte(events[0].Content), &profile); err != nil {
		slog.Debug("relay: malformed profile content", "pubkey", pubkey, "error", err)
		return nil
	}

	if p.profileCache != nil {
		if data, err := json.Marshal(&profile); err == nil {
			if err := p.profileCache.Set(ctx, cacheKey, data, profileCacheTTL); err != nil {
				slog.Debug("relay: profile cache write failed", "error", err)
			}
		}
	}

	return &profile
}
