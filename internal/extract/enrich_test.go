package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemPageMetaAndDerivedVsMarket(t *testing.T) {
	content := `<h1>Xanax</h1>` +
		`<img src="https://example.test/images/items/206/large.png">` +
		`<p>Market Price: $830,000</p>` +
		`<tr><td><a href="https://www.torn.com/bazaar.php?userId=55">Dealer [55]</a></td>` +
		`<td>4</td><td>$788,500</td></tr>`

	e := New(time.Millisecond, time.Second)
	ip, err := e.ItemPage(context.Background(), &fakePage{itemID: 1, contents: []string{content}})
	require.NoError(t, err)

	assert.Equal(t, int64(206), ip.Meta.ID)
	assert.Equal(t, "Xanax", ip.Meta.Name)
	assert.Equal(t, int64(830000), ip.Meta.MarketPrice)

	require.Len(t, ip.Offers, 1)
	require.NotNil(t, ip.Offers[0].VsMarket)
	assert.Equal(t, -5, *ip.Offers[0].VsMarket)
}

func TestItemPageTimeoutKeepsMeta(t *testing.T) {
	content := `<h1>Empty Item</h1><div>spinner</div>`

	e := New(time.Millisecond, 10*time.Millisecond)
	ip, err := e.ItemPage(context.Background(), &fakePage{itemID: 77, contents: []string{content}})
	require.NoError(t, err)
	assert.Equal(t, "Empty Item", ip.Meta.Name)
	assert.Equal(t, int64(77), ip.Meta.ID)
	assert.Empty(t, ip.Offers)
}

func TestVsMarketPercent(t *testing.T) {
	cases := []struct {
		name          string
		price, market int64
		want          int
	}{
		{"below market", 95, 100, -5},
		{"at market", 100, 100, 0},
		{"above market", 130, 100, 30},
		{"positive half rounds up", 1005, 1000, 1},
		{"negative half rounds up toward zero", 995, 1000, 0},
		{"negative half above a whole percent", 875, 1000, -12},
		{"deep discount", 1, 1000, -100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, VsMarketPercent(tc.price, tc.market))
		})
	}
}
