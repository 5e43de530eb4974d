package universe

import (
	"strings"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
)

var stablecoins = map[string]bool{
	"USDT": true, "USDC": true, "DAI": true, "BUSD": true, "TUSD": true,
	"USDP": true, "USD": true, "FDUSD": true, "PYUSD": true, "USDE": true,
	"GUSD": true, "LUSD": true, "FRAX": true,
}

var classBySymbol = map[string]factors.AssetClass{
	"BTC": factors.ClassBitcoin, "WBTC": factors.ClassBitcoin, "BITCOIN": factors.ClassBitcoin,
	"ETH": factors.ClassEthereum, "WETH": factors.ClassEthereum, "ETHEREUM": factors.ClassEthereum,
	"STETH": factors.ClassEthereum,
}

var sectorMembers = map[string][]string{
	"L1":         {"bitcoin", "ethereum", "solana", "avalanche-2", "cardano", "polkadot", "binancecoin", "tron"},
	"L2":         {"arbitrum", "optimism", "polygon-pos", "base", "mantle", "starknet"},
	"DeFi":       {"uniswap", "aave", "maker", "lido-dao", "curve-dao-token", "pendle", "gmx"},
	"NFT_Gaming": {"apecoin", "axie-infinity", "the-sandbox", "decentraland", "gala", "render-token"},
	"Meme":       {"dogecoin", "shiba-inu", "pepe", "bonk", "floki", "wif"},
}

var sectorByCoin = func() map[string]string {
	out := map[string]string{}
	for sector, coins := range sectorMembers {
		for _, id := range coins {
			out[id] = sector
		}
	}
	return out
}()

// IsStablecoin reports whether symbol is a known stablecoin ticker
func IsStablecoin(symbol string) bool {
	return stablecoins[strings.ToUpper(symbol)]
}

// Classify buckets a ticker. Stablecoins win over the bitcoin and ether lists.
func Classify(symbol string) factors.AssetClass {
	upper := strings.ToUpper(symbol)
	if stablecoins[upper] {
		return factors.ClassStablecoin
	}
	if class, ok := classBySymbol[upper]; ok {
		return class
	}
	return factors.ClassAltcoin
}

// SectorOf returns the sector for a coin id, or "" when it has none
func SectorOf(coinID string) string {
	return sectorByCoin[strings.ToLower(coinID)]
}
