package sites

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/simhash"
)

func newCollector(g Gate, gated bool, limit int) *collector {
	return &collector{
		ctx:     context.Background(),
		site:    models.SiteAmazon,
		keyword: "glass cleaner",
		gate:    g,
		gated:   gated,
		limit:   limit,
		logger:  quietLogger(),
		visited: make(map[string]struct{}),
		titles:  make(map[string]*simhash.Set),
	}
}

func ml(q float64) models.QuantityMeasurement {
	return models.QuantityMeasurement{Quantity: q, Unit: models.UnitML, Normalized: q}
}

func TestCollector_Offer(t *testing.T) {
	g := &fakeGate{reject: []string{"Bleach"}}
	c := newCollector(g, true, 0)

	ok := c.offer(candidate{URL: "u1", Name: "Windex Glass Cleaner 500 ml", Price: 12.5, Quantity: ml(500), Confidence: models.ConfidenceFromTitle})
	require.True(t, ok)

	assert.False(t, c.offer(candidate{URL: "u1", Name: "Windex Glass Cleaner 500 ml", Quantity: ml(500)}), "same URL twice")
	assert.False(t, c.offer(candidate{URL: "u2", Name: "Glass Cleaner"}), "no quantity")
	assert.False(t, c.offer(candidate{URL: "u3", Quantity: ml(500)}), "no title")
	assert.False(t, c.offer(candidate{URL: "u4", Name: "Clorox Bleach 1 L", Quantity: ml(1000)}), "gate rejects")
	assert.False(t, c.offer(candidate{URL: "u5", Name: "windex glass cleaner, 500 ml", Price: 12.5, Quantity: ml(500)}), "near-duplicate")
	assert.True(t, c.offer(candidate{URL: "u6", Name: "windex glass cleaner, 500 ml", Price: 9.95, Quantity: ml(500)}), "different price is a different listing")

	// Quantity-less and untitled candidates never reach the gate.
	assert.Equal(t, []string{"Windex Glass Cleaner 500 ml", "Clorox Bleach 1 L", "windex glass cleaner, 500 ml"}, g.calls())

	require.Len(t, c.records, 2)
	rec := c.records[0]
	assert.Equal(t, "u1", rec.URL)
	assert.Equal(t, models.SiteAmazon, rec.Source)
	assert.Equal(t, 500.0, rec.TotalQuantity)
	assert.Equal(t, 500.0, rec.NormalizedQuantity)
	assert.Equal(t, models.UnitML, rec.Unit)
	assert.Equal(t, models.ConfidenceFromTitle, rec.Confidence)
}

func TestCollector_KeepNearDuplicates(t *testing.T) {
	c := newCollector(&fakeGate{}, true, 0)
	c.keepDup = true

	require.True(t, c.offer(candidate{URL: "u1", Name: "Windex Glass Cleaner 500 ml", Price: 12.5, Quantity: ml(500)}))
	assert.True(t, c.offer(candidate{URL: "u2", Name: "windex glass cleaner, 500 ml", Price: 12.5, Quantity: ml(500)}))
	assert.False(t, c.offer(candidate{URL: "u2", Name: "windex glass cleaner, 500 ml", Price: 12.5, Quantity: ml(500)}), "same URL twice")
	assert.Len(t, c.records, 2)
}

func TestCollector_Cap(t *testing.T) {
	c := newCollector(&fakeGate{}, true, 1)
	assert.False(t, c.full())
	assert.True(t, c.offer(candidate{URL: "a", Name: "A cleaner", Quantity: ml(1)}))
	assert.True(t, c.full())
	assert.False(t, c.offer(candidate{URL: "b", Name: "B cleaner", Quantity: ml(2)}))
	assert.Len(t, c.records, 1)
}

func TestCollector_Ungated(t *testing.T) {
	g := &fakeGate{reject: []string{"Cleaner"}}
	c := newCollector(g, false, 0)
	assert.True(t, c.offer(candidate{URL: "a", Name: "Cleaner", Quantity: ml(5)}))
	assert.Empty(t, g.calls())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "glass%20cleaner%20%26%20more", quote("glass cleaner & more"))
	assert.Equal(t, "500-ml-x-6", slug("500 ml x 6"))
	assert.Equal(t, "1-5-l-10-pcs", slug("1,5 L (10 pcs)"))
	assert.Equal(t, "Johnson's", brandPrefix("Johnson's Baby Wipes 80s"))
	assert.Equal(t, "Pampers", brandPrefix("Pampers - Sensitive Wipes, Pack of 4"))
	assert.Equal(t, "", brandPrefix(""))

	abs, err := resolve("https://www.amazon.sa", "/dp/B01?ref=x")
	require.NoError(t, err)
	assert.Equal(t, "https://www.amazon.sa/dp/B01?ref=x", abs)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(config.DefaultSites(), Deps{Gate: &fakeGate{}, Logger: quietLogger()})
	assert.Equal(t, []models.SiteID{
		models.SiteAeroSense, models.SiteAmazon, models.SiteGoGreen,
		models.SiteMumzworld, models.SiteOfficeSupply, models.SiteSaco,
	}, r.IDs())

	for _, id := range models.KnownSites {
		s, ok := r.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, id, s.Site())
	}
	_, ok := r.Get(models.SiteFine)
	assert.False(t, ok)
}
