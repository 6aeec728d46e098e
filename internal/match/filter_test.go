package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestQualifyBoundariesInclusive(t *testing.T) {
	w := domain.Watch{ItemID: 1, MaxPrice: 1000, MinQty: 3}
	offers := []domain.Offer{
		{SellerID: "a", Price: 999, Quantity: 4},   // inside
		{SellerID: "b", Price: 1000, Quantity: 3},  // both boundaries
		{SellerID: "c", Price: 1001, Quantity: 10}, // price out
		{SellerID: "d", Price: 500, Quantity: 2},   // quantity out
	}

	got := Qualify(offers, w)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SellerID)
	assert.Equal(t, "b", got[1].SellerID)
}

func TestQualifyPreservesOrder(t *testing.T) {
	w := domain.Watch{MaxPrice: 100, MinQty: 1}
	offers := []domain.Offer{
		{SellerID: "s1", Price: 10, Quantity: 1},
		{SellerID: "s2", Price: 20, Quantity: 1},
		{SellerID: "s3", Price: 30, Quantity: 1},
	}
	got := Qualify(offers, w)
	require.Len(t, got, 3)
	for i, o := range got {
		assert.Equal(t, offers[i].SellerID, o.SellerID)
	}
}

func TestQualifyEmptyInput(t *testing.T) {
	assert.Empty(t, Qualify(nil, domain.Watch{MaxPrice: 100, MinQty: 1}))
}

func TestQualifyVsMarket(t *testing.T) {
	offers := []domain.Offer{
		{SellerID: "a", Price: 900, Quantity: 1, VsMarket: intPtr(-10)},
		{SellerID: "b", Price: 960, Quantity: 1, VsMarket: intPtr(-4)}, // above threshold
		{SellerID: "c", Price: 950, Quantity: 1, VsMarket: intPtr(-5)}, // exactly at threshold
		{SellerID: "d", Price: 940, Quantity: 1},                      // unknown vs-market
		{SellerID: "e", Price: 1, Quantity: 1, VsMarket: intPtr(-100)}, // placeholder row
	}

	got := QualifyVsMarket(offers, -5)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SellerID)
	assert.Equal(t, "c", got[1].SellerID)
}
