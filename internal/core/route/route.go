package route

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// StripeCount is the fixed number of lock stripes routes hash onto.
const StripeCount = 256

// Key identifies a directional route. Key{A, B} and Key{B, A} are different routes.
type Key struct {
	Departure string
	Arrival   string
}

// For returns the route key for a departure/arrival airport pair.
func For(departure, arrival string) Key {
	return Key{Departure: departure, Arrival: arrival}
}

// String returns the canonical "DEP-ARR" form stored in airport_stats.route_key.
func (k Key) String() string {
	return k.Departure + "-" + k.Arrival
}

// Reverse returns the key for the opposite direction.
func (k Key) Reverse() Key {
	return Key{Departure: k.Arrival, Arrival: k.Departure}
}

// Parse inverts String. Airport codes never contain '-'.
func Parse(s string) (Key, error) {
	dep, arr, ok := strings.Cut(s, "-")
	if !ok || dep == "" || arr == "" || strings.Contains(arr, "-") {
		return Key{}, fmt.Errorf("invalid route key %q", s)
	}
	return Key{Departure: dep, Arrival: arr}, nil
}

// Stripe returns the lock stripe for a route.
// Stable and deterministic: same key always maps to the same stripe.
func Stripe(k Key) int {
	h := fnv.New32a()
	h.Write([]byte(k.String()))
	return int(h.Sum32() % StripeCount)
}
