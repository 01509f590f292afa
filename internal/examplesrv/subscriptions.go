package examplesrv

import (
	"sync"
	"time"

	"github.com/eclipse-uprotocol/up-go/uri"
)

// subscriptionEntry is one subscriber's claim on a topic, valid until its
// expiry lapses (a zero expiry never lapses).
type subscriptionEntry struct {
	topic      uri.URI
	subscriber uri.URI
	expiry     time.Time
}

func (e subscriptionEntry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

// subscriptionRegistry tracks which uEntities have asked to be notified
// about which topics, each claim valid until its ttl lapses. It holds no
// reference to the underlying Transport registrations — those are managed
// separately by comm.Publisher listeners — this is purely the bookkeeping
// a uSubscription-style service needs to answer "who is subscribed" and to
// let stale claims lapse.
type subscriptionRegistry struct {
	mu      sync.Mutex
	entries map[string]*subscriptionEntry
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{entries: make(map[string]*subscriptionEntry)}
}

func subscriptionKey(topic, subscriber uri.URI) string {
	return topic.String() + "|" + subscriber.String()
}

// add records subscriber's claim on topic, valid for ttl (zero means no
// expiry).
func (r *subscriptionRegistry) add(topic, subscriber uri.URI, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expiry time.Time
	if ttl > 0 {
		expiry = time.Now().Add(ttl)
	}
	r.entries[subscriptionKey(topic, subscriber)] = &subscriptionEntry{
		topic:      topic,
		subscriber: subscriber,
		expiry:     expiry,
	}
}

// remove drops subscriber's claim on topic, if any.
func (r *subscriptionRegistry) remove(topic, subscriber uri.URI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, subscriptionKey(topic, subscriber))
}

// active returns every non-expired claim, pruning expired ones in the same
// pass.
func (r *subscriptionRegistry) active() []subscriptionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var live []subscriptionEntry
	for key, e := range r.entries {
		if e.expired(now) {
			delete(r.entries, key)
			continue
		}
		live = append(live, *e)
	}
	return live
}

// count reports the number of live claims without pruning.
func (r *subscriptionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	n := 0
	for _, e := range r.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
