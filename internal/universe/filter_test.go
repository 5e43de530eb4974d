package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
)

func asset(id, symbol string, mcap, vol, price float64) factors.AssetSnapshot {
	return factors.AssetSnapshot{CoinID: id, Symbol: symbol, MarketCap: mcap, Volume24h: vol, Price: price}
}

func TestFilter_Apply(t *testing.T) {
	input := []factors.AssetSnapshot{
		asset("bitcoin", "btc", 1.2e12, 3e10, 65000),
		asset("tether", "USDT", 1.1e11, 5e10, 1),
		asset("fake-btc", "BTC", 2e9, 5e7, 3),
		asset("ethereum", "ETH", 4e11, 1.5e10, 3200),
		asset("uniswap", "UNI", 5e9, 2e8, 8),
		asset("tiny", "TNY", 5e8, 5e7, 1),
		asset("illiquid", "ILQ", 3e9, 1e6, 2),
		asset("dust", "DST", 2e9, 2e7, 1e-9),
		asset("pepe", "PEPE", 4e9, 8e8, 0.00001),
	}

	out, stats := NewFilter(DefaultFilterConfig()).Apply(input)
	require.Len(t, out, 4)

	ids := []string{}
	for _, s := range out {
		ids = append(ids, s.CoinID)
	}
	assert.Equal(t, []string{"bitcoin", "ethereum", "uniswap", "pepe"}, ids)

	assert.Equal(t, factors.ClassBitcoin, out[0].Class)
	assert.Equal(t, "L1", out[0].Sector)
	assert.Equal(t, factors.ClassEthereum, out[1].Class)
	assert.Equal(t, "DeFi", out[2].Sector)
	assert.Equal(t, factors.ClassAltcoin, out[3].Class)
	assert.Equal(t, "Meme", out[3].Sector)

	assert.Equal(t, 9, stats.Input)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.MarketCap)
	assert.Equal(t, 1, stats.Volume)
	assert.Equal(t, 1, stats.Price)
	assert.Equal(t, 1, stats.Stables)
	assert.Equal(t, 4, stats.Output)
	assert.Equal(t, 2, stats.Classes["altcoin"])
}

func TestFilter_KeepsStablesWhenAsked(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.ExcludeStables = false
	out, _ := NewFilter(cfg).Apply([]factors.AssetSnapshot{asset("usd-coin", "usdc", 3e10, 5e9, 1)})
	require.Len(t, out, 1)
	assert.Equal(t, factors.ClassStablecoin, out[0].Class)
}

func TestFilter_KeepsProvidedSector(t *testing.T) {
	s := asset("bitcoin", "BTC", 1e12, 1e10, 60000)
	s.Sector = "Store of value"
	out, _ := NewFilter(DefaultFilterConfig()).Apply([]factors.AssetSnapshot{s})
	assert.Equal(t, "Store of value", out[0].Sector)
}

func TestFilter_Empty(t *testing.T) {
	out, stats := NewFilter(DefaultFilterConfig()).Apply(nil)
	assert.Empty(t, out)
	assert.Zero(t, stats.Output)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, factors.ClassBitcoin, Classify("wbtc"))
	assert.Equal(t, factors.ClassEthereum, Classify("stETH"))
	assert.Equal(t, factors.ClassStablecoin, Classify("fdusd"))
	assert.Equal(t, factors.ClassAltcoin, Classify("SOL"))
	assert.True(t, IsStablecoin("dai"))
	assert.Equal(t, "L2", SectorOf("Arbitrum"))
	assert.Equal(t, "", SectorOf("unknown-coin"))
}
