package relay

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"nwc-core/nostr"
)

// PublishResult records which relays accepted a published event and
// which did not.
type PublishResult struct {
	Successes []string
	Failures  []string
}

// PublishEvent fans the signed event out to every target relay
// concurrently. Success means the relay acknowledged the event with OK
// within the publish window. Total failure is logged, not returned as
// an error - callers decide whether zero successes matters. With no
// explicit targets the recommended write relays are used.
func (p *Pool) PublishEvent(ctx context.Context, event *nostr.Event, relayURLs []string) PublishResult {
	if len(relayURLs) == 0 {
		relayURLs = WriteRelayURLs()
	}

	type outcome struct {
		relayURL string
		err      error
	}

	var wg sync.WaitGroup
	outcomes := make(chan outcome, len(relayURLs))

	for _, relayURL := range relayURLs {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()

			pubCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
			defer cancel()

			conn, err := p.Connect(pubCtx, target)
			if err != nil {
				outcomes <- outcome{relayURL: target, err: err}
				return
			}
			outcomes <- outcome{relayURL: target, err: conn.Publish(pubCtx, event)}
		}(relayURL)
	}

	wg.Wait()
	close(outcomes)

	var result PublishResult
	for o := range outcomes {
		if o.err != nil {
			slog.Debug("relay: publish failed", "relay", o.relayURL, "event_id", event.ID, "error", o.err)
			result.Failures = append(result.Failures, o.relayURL)
		} else {
			result.Successes = append(result.Successes, o.relayURL)
		}
	}
	sort.Strings(result.Successes)
	sort.Strings(result.Failures)

	if len(result.Successes) == 0 && len(relayURLs) > 0 {
		slog.Warn("relay: event not accepted by any relay",
			"event_id", event.ID, "relays", len(relayURLs))
	}

	return result
}
