package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cryptocagua/model"
)

const offersKey = KeyPrefix + "offers"

// ErrCorruptCache is returned alongside an empty collection when the stored
// blob cannot be decoded. The next write replaces it.
var ErrCorruptCache = errors.New("offer cache is corrupt")

// OfferCache is the last known offer collection, stored as one JSON blob.
// It is a mirror of the remote sheet, not a source of truth: ReplaceAll
// discards anything not present remotely.
type OfferCache struct {
	mu    sync.Mutex
	store Store
}

func NewOfferCache(store Store) *OfferCache {
	return &OfferCache{store: store}
}

func (c *OfferCache) GetAll(ctx context.Context) ([]model.Offer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *OfferCache) ReplaceAll(ctx context.Context, offers []model.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(ctx, offers)
}

// Insert puts the offer first. An offer with the same id is replaced in place.
func (c *OfferCache) Insert(ctx context.Context, offer model.Offer) error {
	return c.update(ctx, func(offers []model.Offer) []model.Offer {
		for i := range offers {
			if offers[i].ID == offer.ID {
				offers[i] = offer
				return offers
			}
		}
		return append([]model.Offer{offer}, offers...)
	})
}

// RemoveByID reports whether the id was present.
func (c *OfferCache) RemoveByID(ctx context.Context, id string) (bool, error) {
	found := false
	err := c.update(ctx, func(offers []model.Offer) []model.Offer {
		out := offers[:0]
		for _, o := range offers {
			if o.ID == id {
				found = true
				continue
			}
			out = append(out, o)
		}
		return out
	})
	return found, err
}

// MapStatus sets the status of one offer and reports whether it was present.
func (c *OfferCache) MapStatus(ctx context.Context, id string, status model.OfferStatus) (bool, error) {
	found := false
	err := c.update(ctx, func(offers []model.Offer) []model.Offer {
		for i := range offers {
			if offers[i].ID == id {
				offers[i].Status = status
				found = true
			}
		}
		return offers
	})
	return found, err
}

// Find returns a copy of one offer, or nil.
func (c *OfferCache) Find(ctx context.Context, id string) (*model.Offer, error) {
	offers, err := c.GetAll(ctx)
	for _, o := range offers {
		if o.ID == id {
			found := o
			return &found, err
		}
	}
	return nil, err
}

// update runs a whole-collection read/modify/write under the cache lock.
// A corrupt blob is treated as empty and overwritten.
func (c *OfferCache) update(ctx context.Context, fn func([]model.Offer) []model.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	offers, err := c.loadLocked(ctx)
	if err != nil && !errors.Is(err, ErrCorruptCache) {
		return err
	}
	return c.saveLocked(ctx, fn(offers))
}

func (c *OfferCache) loadLocked(ctx context.Context) ([]model.Offer, error) {
	raw, ok, err := c.store.Get(ctx, offersKey)
	if err != nil {
		return []model.Offer{}, err
	}
	if !ok || raw == "" {
		return []model.Offer{}, nil
	}
	var offers []model.Offer
	if err := json.Unmarshal([]byte(raw), &offers); err != nil {
		return []model.Offer{}, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	return offers, nil
}

func (c *OfferCache) saveLocked(ctx context.Context, offers []model.Offer) error {
	if offers == nil {
		offers = []model.Offer{}
	}
	b, err := json.Marshal(offers)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, offersKey, string(b))
}
