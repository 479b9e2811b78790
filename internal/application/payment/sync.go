package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"volt/internal/domain/catalog"
	"volt/internal/infrastructure/paddle"
	"volt/internal/shared/errors"
)

// SyncPolicy decides whether catalog sync may edit remote state.
type SyncPolicy string

const (
	// SyncAutoApply applies remote creates and patches without asking.
	SyncAutoApply SyncPolicy = "auto"
	// SyncDryRun logs planned changes and applies nothing.
	SyncDryRun SyncPolicy = "dry-run"
	// SyncPrompt asks the injected Confirm callback before applying.
	SyncPrompt SyncPolicy = "prompt"
)

func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch SyncPolicy(s) {
	case SyncAutoApply, SyncDryRun, SyncPrompt:
		return SyncPolicy(s), nil
	case "":
		return SyncAutoApply, nil
	default:
		return "", fmt.Errorf("unknown sync policy %q", s)
	}
}

// SyncOptions configures one Sync run.
type SyncOptions struct {
	Policy SyncPolicy
	// WebhookDestination is the public URL of the webhook endpoint.
	WebhookDestination string
	// Confirm gates remote edits under SyncPrompt. Ignored otherwise.
	Confirm func(summary string) bool
}

// plannedChange is one remote edit computed during the diff pass and
// executed only when the policy allows it.
type plannedChange struct {
	summary string
	apply   func(ctx context.Context) error
}

// sellable flattens products and plans into the unit the processor
// sells: one product with one price each.
type sellable struct {
	localID     string
	name        string
	description string
	taxCategory string
	icon        string
	price       int64
	currency    string
	billing     *paddle.BillingCycle
}

// Sync reconciles the local catalog with the processor and registers
// the webhook subscription. When the catalog definition is unchanged
// since the cached state, the remote product scan is skipped entirely.
func (s *Service) Sync(ctx context.Context, opts SyncOptions) error {
	cached, err := s.states.Get(ctx)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	if cached != nil && cached.ConfigHash == s.catalog.Hash() {
		s.log.Infow("catalog unchanged, reusing cached resolution", "hash", cached.ConfigHash)
		s.setState(cached)
	} else {
		applied, err := s.syncProducts(ctx, cached, opts)
		if err != nil {
			return err
		}
		if !applied {
			// Dry run or declined prompt: keep whatever resolution we
			// had, do not touch the webhook subscription.
			return nil
		}
	}

	if opts.WebhookDestination == "" {
		return nil
	}
	return s.ensureWebhook(ctx, opts.WebhookDestination)
}

func (s *Service) syncProducts(ctx context.Context, cached *catalog.State, opts SyncOptions) (applied bool, err error) {
	remote, err := s.processor.ListActiveProducts(ctx)
	if err != nil {
		return false, err
	}

	resolution := map[string]catalog.ExternalIDs{}
	var changes []plannedChange
	for _, item := range s.sellables() {
		changes = append(changes, s.diffSellable(item, remote, resolution)...)
	}

	if len(changes) > 0 {
		summaries := make([]string, len(changes))
		for i, c := range changes {
			summaries[i] = c.summary
		}
		summary := strings.Join(summaries, "\n")

		switch opts.Policy {
		case SyncDryRun:
			s.log.Infow("catalog sync dry run, not applying", "planned", summary)
			return false, nil
		case SyncPrompt:
			if opts.Confirm == nil || !opts.Confirm(summary) {
				s.log.Warnw("catalog sync declined", "planned", summary)
				return false, nil
			}
		}

		for _, c := range changes {
			s.log.Infow("applying catalog change", "change", c.summary)
			if err := c.apply(ctx); err != nil {
				return false, err
			}
		}
	}

	state := &catalog.State{
		ConfigHash: s.catalog.Hash(),
		Resolution: resolution,
	}
	if cached != nil {
		state.WebhookHash = cached.WebhookHash
	}
	if err := s.states.Save(ctx, state); err != nil {
		return false, err
	}
	s.setState(state)

	s.log.Infow("catalog synced", "products", len(resolution), "changes", len(changes))
	return true, nil
}

// sellables flattens the catalog: standalone products sell themselves,
// subscription parents sell their plans.
func (s *Service) sellables() []sellable {
	var out []sellable
	for _, p := range s.catalog.Products() {
		if !p.Subscription {
			out = append(out, sellable{
				localID:     p.ID,
				name:        p.Name,
				description: p.Description,
				taxCategory: p.TaxCategory,
				icon:        p.Icon,
				price:       p.Price,
				currency:    p.Currency,
			})
			continue
		}
		for _, plan := range p.Plans {
			frequency := plan.Frequency
			if frequency == 0 {
				frequency = 1
			}
			out = append(out, sellable{
				localID:     plan.ID,
				name:        plan.Name,
				description: plan.Description,
				taxCategory: plan.TaxCategory,
				icon:        plan.Icon,
				price:       plan.Price,
				currency:    plan.Currency,
				billing:     &paddle.BillingCycle{Interval: plan.Interval, Frequency: frequency},
			})
		}
	}
	return out
}

// diffSellable compares one sellable against the remote inventory,
// filling the resolution map for ids that already exist and planning
// creates/patches for the rest. The planned closures write into the
// resolution map when they run.
func (s *Service) diffSellable(item sellable, remote []paddle.Product, resolution map[string]catalog.ExternalIDs) []plannedChange {
	var changes []plannedChange

	remoteProduct, found := findRemoteProduct(remote, item.localID, item.name)
	if !found {
		changes = append(changes, plannedChange{
			summary: fmt.Sprintf("create product %q (%s)", item.name, item.localID),
			apply: func(ctx context.Context) error {
				created, err := s.processor.CreateProduct(ctx, s.desiredProduct(item))
				if err != nil {
					return err
				}
				price, err := s.processor.CreatePrice(ctx, s.desiredPrice(item, created.ID))
				if err != nil {
					return err
				}
				resolution[item.localID] = catalog.ExternalIDs{ProductID: created.ID, PriceID: price.ID}
				return nil
			},
		})
		return changes
	}

	ids := catalog.ExternalIDs{ProductID: remoteProduct.ID}

	if productDiffers(remoteProduct, s.desiredProduct(item)) {
		changes = append(changes, plannedChange{
			summary: fmt.Sprintf("update product %q (%s)", item.name, item.localID),
			apply: func(ctx context.Context) error {
				_, err := s.processor.UpdateProduct(ctx, remoteProduct.ID, s.desiredProduct(item))
				return err
			},
		})
	}

	remotePrice, priceFound := findRemotePrice(remoteProduct, item.localID)
	if !priceFound {
		changes = append(changes, plannedChange{
			summary: fmt.Sprintf("create price for %q (%s)", item.name, item.localID),
			apply: func(ctx context.Context) error {
				price, err := s.processor.CreatePrice(ctx, s.desiredPrice(item, remoteProduct.ID))
				if err != nil {
					return err
				}
				ids.PriceID = price.ID
				resolution[item.localID] = ids
				return nil
			},
		})
		resolution[item.localID] = ids
		return changes
	}

	ids.PriceID = remotePrice.ID
	resolution[item.localID] = ids

	if priceDiffers(remotePrice, s.desiredPrice(item, remoteProduct.ID)) {
		changes = append(changes, plannedChange{
			summary: fmt.Sprintf("update price for %q (%s)", item.name, item.localID),
			apply: func(ctx context.Context) error {
				_, err := s.processor.UpdatePrice(ctx, remotePrice.ID, s.desiredPrice(item, remoteProduct.ID))
				return err
			},
		})
	}
	return changes
}

func (s *Service) desiredProduct(item sellable) paddle.Product {
	return paddle.Product{
		Name:        item.name,
		Description: item.description,
		TaxCategory: item.taxCategory,
		ImageURL:    item.icon,
		CustomData:  map[string]any{"local_id": item.localID},
	}
}

func (s *Service) desiredPrice(item sellable, productID string) paddle.Price {
	return paddle.Price{
		ProductID:   productID,
		Description: item.name,
		UnitPrice: paddle.Money{
			Amount:       strconv.FormatInt(item.price, 10),
			CurrencyCode: item.currency,
		},
		BillingCycle: item.billing,
		CustomData:   map[string]any{"local_id": item.localID},
	}
}

// findRemoteProduct matches by the local_id we stamp into custom data,
// falling back to the display name for products created before the
// stamp existed.
func findRemoteProduct(remote []paddle.Product, localID, name string) (paddle.Product, bool) {
	for _, p := range remote {
		if customDataString(p.CustomData, "local_id") == localID {
			return p, true
		}
	}
	for _, p := range remote {
		if p.Name == name {
			return p, true
		}
	}
	return paddle.Product{}, false
}

func findRemotePrice(product paddle.Product, localID string) (paddle.Price, bool) {
	for _, price := range product.Prices {
		if customDataString(price.CustomData, "local_id") == localID {
			return price, true
		}
	}
	for _, price := range product.Prices {
		if price.Status == "" || price.Status == "active" {
			return price, true
		}
	}
	return paddle.Price{}, false
}

func productDiffers(remote, desired paddle.Product) bool {
	return remote.Name != desired.Name ||
		remote.Description != desired.Description ||
		remote.TaxCategory != desired.TaxCategory ||
		remote.ImageURL != desired.ImageURL
}

func priceDiffers(remote, desired paddle.Price) bool {
	if remote.UnitPrice.Amount != desired.UnitPrice.Amount ||
		remote.UnitPrice.CurrencyCode != desired.UnitPrice.CurrencyCode {
		return true
	}
	if (remote.BillingCycle == nil) != (desired.BillingCycle == nil) {
		return true
	}
	if remote.BillingCycle != nil &&
		(remote.BillingCycle.Interval != desired.BillingCycle.Interval ||
			remote.BillingCycle.Frequency != desired.BillingCycle.Frequency) {
		return true
	}
	return false
}

// ensureWebhook registers or patches the processor-side webhook
// subscription to carry exactly the event types the engine handles. A
// hash of the desired configuration is cached so an unchanged boot
// makes no remote calls.
func (s *Service) ensureWebhook(ctx context.Context, destination string) error {
	desiredHash := webhookConfigHash(destination)

	state := s.currentState()
	if state.WebhookHash == desiredHash {
		return nil
	}

	desired := paddle.NotificationSetting{
		Description:      "volt webhook",
		Destination:      destination,
		Type:             "url",
		Active:           true,
		SubscribedEvents: paddle.SubscribedEventTypes,
	}

	settings, err := s.processor.ListNotificationSettings(ctx)
	if err != nil {
		return err
	}

	var existing *paddle.NotificationSetting
	for i := range settings {
		if settings[i].Destination == destination {
			existing = &settings[i]
			break
		}
	}

	switch {
	case existing == nil:
		s.log.Infow("registering webhook subscription", "destination", destination)
		if err := s.processor.CreateNotificationSetting(ctx, desired); err != nil {
			return err
		}
	case !existing.Active || !sameEvents(existing.SubscribedEvents, desired.SubscribedEvents):
		s.log.Infow("updating webhook subscription", "destination", destination)
		if err := s.processor.UpdateNotificationSetting(ctx, existing.ID, desired); err != nil {
			return err
		}
	}

	state.WebhookHash = desiredHash
	if err := s.states.Save(ctx, state); err != nil {
		return err
	}
	return nil
}

func webhookConfigHash(destination string) string {
	sum := sha256.Sum256([]byte(destination + "|" + strings.Join(paddle.SubscribedEventTypes, ",")))
	return hex.EncodeToString(sum[:])
}

func sameEvents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, ev := range a {
		set[ev] = true
	}
	for _, ev := range b {
		if !set[ev] {
			return false
		}
	}
	return true
}
