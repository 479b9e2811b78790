package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Product is one sellable entry in the catalog. A subscription product
// acts as a parent grouping its plans; at most one plan per family may
// be active for a user at a time.
type Product struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Price        int64  `yaml:"price"`
	Currency     string `yaml:"currency"`
	TaxCategory  string `yaml:"tax_category"`
	Icon         string `yaml:"icon"`
	Subscription bool   `yaml:"subscription"`
	Plans        []Plan `yaml:"plans"`
}

// Plan is a billing option nested under a subscription product. Unset
// presentation fields inherit from the parent at load time.
type Plan struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
	Currency    string `yaml:"currency"`
	TaxCategory string `yaml:"tax_category"`
	Icon        string `yaml:"icon"`
	Interval    string `yaml:"interval"`
	Frequency   int    `yaml:"frequency"`
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// Catalog is the immutable product definition loaded at boot. The
// local catalog is authoritative for identity; the processor is
// authoritative for external price ids, which live in a separate
// resolution map, never here.
type Catalog struct {
	products   []Product
	byID       map[string]*Product
	planByID   map[string]*Plan
	planParent map[string]string
	hash       string
}

// Load reads and expands the catalog definition. Subscription parents
// without an explicit id get synthetic `sub_N` ids in file order, and
// plans inherit unset fields from their parent.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from raw yaml. Exposed for tests.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}

	c := &Catalog{
		products:   file.Products,
		byID:       make(map[string]*Product),
		planByID:   make(map[string]*Plan),
		planParent: make(map[string]string),
	}

	subIndex := 0
	for i := range c.products {
		p := &c.products[i]

		if p.Subscription && p.ID == "" {
			p.ID = fmt.Sprintf("sub_%d", subIndex)
		}
		if p.Subscription {
			subIndex++
		}
		if p.ID == "" {
			return nil, fmt.Errorf("product %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		c.byID[p.ID] = p

		if !p.Subscription && len(p.Plans) > 0 {
			return nil, fmt.Errorf("product %q has plans but is not a subscription", p.ID)
		}

		for j := range p.Plans {
			plan := &p.Plans[j]
			if plan.ID == "" {
				return nil, fmt.Errorf("plan %q under %q has no id", plan.Name, p.ID)
			}
			if _, dup := c.planByID[plan.ID]; dup {
				return nil, fmt.Errorf("duplicate plan id %q", plan.ID)
			}

			inheritPlanFields(plan, p)

			c.planByID[plan.ID] = plan
			c.planParent[plan.ID] = p.ID
		}
	}

	sum := sha256.Sum256(raw)
	c.hash = hex.EncodeToString(sum[:])

	return c, nil
}

func inheritPlanFields(plan *Plan, parent *Product) {
	if plan.Currency == "" {
		plan.Currency = parent.Currency
	}
	if plan.TaxCategory == "" {
		plan.TaxCategory = parent.TaxCategory
	}
	if plan.Icon == "" {
		plan.Icon = parent.Icon
	}
	if plan.Description == "" {
		plan.Description = parent.Description
	}
}

// Products returns all products in file order.
func (c *Catalog) Products() []Product {
	return c.products
}

// Product looks up a product by id.
func (c *Catalog) Product(productID string) (*Product, bool) {
	p, ok := c.byID[productID]
	return p, ok
}

// Plan looks up a plan by id across all subscription families.
func (c *Catalog) Plan(planID string) (*Plan, bool) {
	p, ok := c.planByID[planID]
	return p, ok
}

// ParentOf returns the subscription family id owning a plan.
func (c *Catalog) ParentOf(planID string) (string, bool) {
	parent, ok := c.planParent[planID]
	return parent, ok
}

// SiblingPlans returns the ids of every other plan in the same family.
func (c *Catalog) SiblingPlans(planID string) []string {
	parent, ok := c.planParent[planID]
	if !ok {
		return nil
	}
	product := c.byID[parent]
	siblings := make([]string, 0, len(product.Plans)-1)
	for i := range product.Plans {
		if product.Plans[i].ID != planID {
			siblings = append(siblings, product.Plans[i].ID)
		}
	}
	return siblings
}

// Hash is a digest of the raw definition, used to short-circuit catalog
// sync and webhook registration when nothing changed.
func (c *Catalog) Hash() string {
	return c.hash
}
