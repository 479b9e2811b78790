package catalog

import "context"

// ExternalIDs are the processor-assigned identifiers for one local
// product or plan.
type ExternalIDs struct {
	ProductID string `json:"product_id"`
	PriceID   string `json:"price_id"`
}

// State is the derived sync cache: the id-resolution map built during
// catalog sync plus the hashes used to skip redundant remote calls.
// The catalog definition itself is never mutated; this cache is the
// only mutable artifact of sync.
type State struct {
	ConfigHash  string
	Resolution  map[string]ExternalIDs
	WebhookHash string
}

// Resolve returns the external ids for a local product or plan id.
func (s *State) Resolve(localID string) (ExternalIDs, bool) {
	ids, ok := s.Resolution[localID]
	return ids, ok
}

// LocalIDForPrice reverse-maps an external price id to the local id.
func (s *State) LocalIDForPrice(priceID string) (string, bool) {
	for local, ids := range s.Resolution {
		if ids.PriceID == priceID {
			return local, true
		}
	}
	return "", false
}

// StateRepository persists the sync cache.
type StateRepository interface {
	Get(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}
