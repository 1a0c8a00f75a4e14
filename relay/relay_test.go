package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"nwc-core/cache"
	"nwc-core/nostr"
)

// fakeRelay is an in-process relay speaking just enough of the wire
// protocol for the pool: REQ gets the canned events plus EOSE, EVENT
// gets an OK, CLOSE is recorded.
type fakeRelay struct {
	srv           *httptest.Server
	mu            sync.Mutex
	events        []nostr.Event
	acceptPublish bool
	reqCount      int
	published     []nostr.Event
	closedSubs    []string
}

func newFakeRelay(t *testing.T, events []nostr.Event, acceptPublish bool) *fakeRelay {
	t.Helper()

	f := &fakeRelay{events: events, acceptPublish: acceptPublish}
	upgrader := websocket.Upgrader{}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			var msg []json.RawMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			if len(msg) < 2 {
				continue
			}
			var msgType string
			if err := json.Unmarshal(msg[0], &msgType); err != nil {
				continue
			}

			switch msgType {
			case "REQ":
				var subID string
				if err := json.Unmarshal(msg[1], &subID); err != nil {
					continue
				}
				f.mu.Lock()
				f.reqCount++
				canned := append([]nostr.Event(nil), f.events...)
				f.mu.Unlock()
				for i := range canned {
					ws.WriteJSON([]interface{}{"EVENT", subID, canned[i]})
				}
				ws.WriteJSON([]interface{}{"EOSE", subID})

			case "EVENT":
				var event nostr.Event
				if err := json.Unmarshal(msg[1], &event); err != nil {
					continue
				}
				f.mu.Lock()
				f.published = append(f.published, event)
				accept := f.acceptPublish
				f.mu.Unlock()
				reason := ""
				if !accept {
					reason = "blocked: not accepting events"
				}
				ws.WriteJSON([]interface{}{"OK", event.ID, accept, reason})

			case "CLOSE":
				var subID string
				if err := json.Unmarshal(msg[1], &subID); err != nil {
					continue
				}
				f.mu.Lock()
				f.closedSubs = append(f.closedSubs, subID)
				f.mu.Unlock()
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRelay) URL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeRelay) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqCount
}

// deadRelayURL returns a ws:// URL that refuses connections
func deadRelayURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()
	return url
}

func testEvent(id string, createdAt int64) nostr.Event {
	return nostr.Event{
		ID:        id,
		PubKey:    strings.Repeat("ab", 32),
		CreatedAt: createdAt,
		Kind:      1,
		Tags:      [][]string{},
		Content:   "note " + id,
		Sig:       strings.Repeat("cd", 64),
	}
}

func newTestPool(t *testing.T, opts ...Option) *Pool {
	t.Helper()
	opts = append([]Option{
		WithFetchTimeout(2 * time.Second),
		WithPublishTimeout(2 * time.Second),
	}, opts...)
	pool := NewPool(opts...)
	t.Cleanup(pool.Shutdown)
	return pool
}

func TestFetchEventsDeduplicatesAcrossRelays(t *testing.T) {
	e1 := testEvent("event-1", 100)
	e2 := testEvent("event-2", 200)
	e3 := testEvent("event-3", 300)

	relayA := newFakeRelay(t, []nostr.Event{e1, e2}, true)
	relayB := newFakeRelay(t, []nostr.Event{e2, e3}, true)
	dead := deadRelayURL(t)

	pool := newTestPool(t)
	events := pool.FetchEvents(context.Background(),
		nostr.Filter{Kinds: []int{1}},
		[]string{relayA.URL(), relayB.URL(), dead})

	require.Len(t, events, 3)
	// Newest first
	require.Equal(t, "event-3", events[0].ID)
	require.Equal(t, "event-2", events[1].ID)
	require.Equal(t, "event-1", events[2].ID)
}

func TestFetchEventsAppliesLimit(t *testing.T) {
	fake := newFakeRelay(t, []nostr.Event{
		testEvent("old", 100),
		testEvent("new", 200),
	}, true)

	pool := newTestPool(t)
	events := pool.FetchEvents(context.Background(),
		nostr.Filter{Kinds: []int{1}, Limit: 1},
		[]string{fake.URL()})

	require.Len(t, events, 1)
	require.Equal(t, "new", events[0].ID)
}

func TestFetchEventsRecordsRelaysSeen(t *testing.T) {
	fake := newFakeRelay(t, []nostr.Event{testEvent("seen", 100)}, true)

	pool := newTestPool(t)
	events := pool.FetchEvents(context.Background(),
		nostr.Filter{Kinds: []int{1}},
		[]string{fake.URL()})

	require.Len(t, events, 1)
	require.Equal(t, []string{fake.URL()}, events[0].RelaysSeen)
}

func TestPublishEventPartialFailure(t *testing.T) {
	good := newFakeRelay(t, nil, true)
	rejecting := newFakeRelay(t, nil, false)
	dead := deadRelayURL(t)

	pool := newTestPool(t)
	event := testEvent("pub-1", 100)
	result := pool.PublishEvent(context.Background(), &event,
		[]string{good.URL(), rejecting.URL(), dead})

	require.Equal(t, []string{good.URL()}, result.Successes)
	require.Len(t, result.Failures, 2)
	require.Contains(t, result.Failures, rejecting.URL())
	require.Contains(t, result.Failures, dead)
}

func TestPublishEventAllFail(t *testing.T) {
	rejecting := newFakeRelay(t, nil, false)

	pool := newTestPool(t)
	event := testEvent("pub-2", 100)
	result := pool.PublishEvent(context.Background(), &event,
		[]string{rejecting.URL(), deadRelayURL(t)})

	require.Empty(t, result.Successes)
	require.Len(t, result.Failures, 2)
}

func TestPoolConnectIsIdempotent(t *testing.T) {
	fake := newFakeRelay(t, nil, true)
	pool := newTestPool(t)

	conn1, err := pool.Connect(context.Background(), fake.URL())
	require.NoError(t, err)
	conn2, err := pool.Connect(context.Background(), fake.URL())
	require.NoError(t, err)
	require.Same(t, conn1, conn2)
}

func TestPoolConnectRejectsBadURLs(t *testing.T) {
	pool := newTestPool(t)

	for _, bad := range []string{
		"https://relay.example.com",
		"wss://",
		"not a url at all\x00",
		"",
	} {
		_, err := pool.Connect(context.Background(), bad)
		require.ErrorIs(t, err, ErrConnectionFailed, "url %q", bad)
	}
}

func TestPoolDisconnectClosesConnection(t *testing.T) {
	fake := newFakeRelay(t, nil, true)
	pool := newTestPool(t)

	conn, err := pool.Connect(context.Background(), fake.URL())
	require.NoError(t, err)

	pool.Disconnect(fake.URL())
	require.True(t, conn.IsClosed())

	// Reconnecting after a disconnect dials fresh
	conn2, err := pool.Connect(context.Background(), fake.URL())
	require.NoError(t, err)
	require.NotSame(t, conn, conn2)
	require.False(t, conn2.IsClosed())
}

func TestPoolShutdownClosesEverything(t *testing.T) {
	fakeA := newFakeRelay(t, nil, true)
	fakeB := newFakeRelay(t, nil, true)
	pool := NewPool()

	connA, err := pool.Connect(context.Background(), fakeA.URL())
	require.NoError(t, err)
	connB, err := pool.Connect(context.Background(), fakeB.URL())
	require.NoError(t, err)

	pool.Shutdown()
	require.True(t, connA.IsClosed())
	require.True(t, connB.IsClosed())

	// Shutdown twice is harmless
	pool.Shutdown()
}

func TestUnsubscribeSendsClose(t *testing.T) {
	fake := newFakeRelay(t, nil, true)
	pool := newTestPool(t)

	conn, err := pool.Connect(context.Background(), fake.URL())
	require.NoError(t, err)

	sub, err := conn.Subscribe(nostr.Filter{Kinds: []int{1}})
	require.NoError(t, err)
	conn.Unsubscribe(sub)

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		for _, id := range fake.closedSubs {
			if id == sub.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFetchProfileParsesNewest(t *testing.T) {
	oldProfile := testEvent("profile-old", 100)
	oldProfile.Kind = nostr.KindProfileMetadata
	oldProfile.Content = `{"name":"alice (old)"}`

	newProfile := testEvent("profile-new", 200)
	newProfile.Kind = nostr.KindProfileMetadata
	newProfile.Content = `{"name":"alice","lud16":"alice@getalby.com"}`

	fake := newFakeRelay(t, []nostr.Event{oldProfile, newProfile}, true)
	pool := newTestPool(t)

	pubkey := strings.Repeat("ab", 32)
	profile := pool.FetchProfile(context.Background(), pubkey, []string{fake.URL()})
	require.NotNil(t, profile)
	require.Equal(t, "alice", profile.Name)
	require.Equal(t, "alice@getalby.com", profile.Lud16)
}

func TestFetchProfileUsesCache(t *testing.T) {
	event := testEvent("profile-1", 100)
	event.Kind = nostr.KindProfileMetadata
	event.Content = `{"name":"bob"}`

	fake := newFakeRelay(t, []nostr.Event{event}, true)
	backend := cache.NewMemory(100, time.Minute)
	t.Cleanup(func() { backend.Close() })

	pool := newTestPool(t, WithProfileCache(backend))
	pubkey := strings.Repeat("ab", 32)

	first := pool.FetchProfile(context.Background(), pubkey, []string{fake.URL()})
	require.NotNil(t, first)
	second := pool.FetchProfile(context.Background(), pubkey, []string{fake.URL()})
	require.NotNil(t, second)
	require.Equal(t, first.Name, second.Name)

	require.Equal(t, 1, fake.requests(), "second lookup should be served from cache")
}

func TestFetchProfileMalformedContent(t *testing.T) {
	event := testEvent("profile-bad", 100)
	event.Kind = nostr.KindProfileMetadata
	event.Content = "definitely not json"

	fake := newFakeRelay(t, []nostr.Event{event}, true)
	pool := newTestPool(t)

	profile := pool.FetchProfile(context.Background(), strings.Repeat("ab", 32), []string{fake.URL()})
	require.Nil(t, profile)
}

func TestFetchProfileNoEvents(t *testing.T) {
	fake := newFakeRelay(t, nil, true)
	pool := newTestPool(t)

	profile := pool.FetchProfile(context.Background(), strings.Repeat("ab", 32), []string{fake.URL()})
	require.Nil(t, profile)
}

func TestRecommendedRelaysReturnsCopy(t *testing.T) {
	first := RecommendedRelays()
	require.NotEmpty(t, first)

	first[0].URL = "wss://mutated.example.com"
	second := RecommendedRelays()
	require.NotEqual(t, "wss://mutated.example.com", second[0].URL)

	for _, url := range ReadRelayURLs() {
		require.True(t, strings.HasPrefix(url, "wss://"), "url %s", url)
	}
	require.Less(t, len(WriteRelayURLs()), len(ReadRelayURLs())+1)
}

func TestDialStandaloneConnection(t *testing.T) {
	fake := newFakeRelay(t, []nostr.Event{testEvent("standalone", 100)}, true)

	conn, err := Dial(context.Background(), fake.URL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	require.Equal(t, fake.URL(), conn.URL())

	sub, err := conn.Subscribe(nostr.Filter{Kinds: []int{1}})
	require.NoError(t, err)
	defer conn.Unsubscribe(sub)

	select {
	case event := <-sub.Events:
		require.Equal(t, "standalone", event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event from relay within window")
	}
}

func TestDialRefusesBadScheme(t *testing.T) {
	_, err := Dial(context.Background(), "http://relay.example.com")
	require.ErrorIs(t, err, ErrConnectionFailed)
}
