package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

func TestReadPrices(t *testing.T) {
	csv := `date,coin_id,price,volume
2024-01-01,bitcoin,42000.5,1e10
2024-01-02,bitcoin,43000,
2024-01-01T00:00:00Z,ethereum,2300,5e9
2024-01-02,ethereum,not-a-number,1
2024-01-03,,1,1
`
	histories, err := ReadPrices(strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, histories["bitcoin"], 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), histories["bitcoin"][0].Date)
	assert.Equal(t, 42000.5, histories["bitcoin"][0].Price)
	assert.Equal(t, 1e10, histories["bitcoin"][0].Volume)
	assert.Zero(t, histories["bitcoin"][1].Volume)

	require.Len(t, histories["ethereum"], 1)
	assert.Len(t, histories, 2)
}

func TestReadPrices_HeaderErrors(t *testing.T) {
	_, err := ReadPrices(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadPrices(strings.NewReader("coin_id,price\nbitcoin,1\n"))
	assert.ErrorContains(t, err, `"date"`)
}

func TestWritePrices_RoundTrip(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in := map[string][]frame.PricePoint{
		"solana":  {{Date: day, Price: 101.25, Volume: 3e9}},
		"bitcoin": {{Date: day, Price: 61000}, {Date: day.AddDate(0, 0, 1), Price: 61500, Volume: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePrices(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "coin_id,date,price,volume\nbitcoin,2024-03-01,61000,0\n"))

	out, err := ReadPrices(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadSnapshotsAndHoldings(t *testing.T) {
	dir := t.TempDir()

	snapYAML := filepath.Join(dir, "snapshots.yaml")
	require.NoError(t, os.WriteFile(snapYAML, []byte(`
- coin_id: bitcoin
  symbol: BTC
  price: 65000
  market_cap: 1.2e12
  volume_24h: 3e10
  return_30d: 0.12
- coin_id: pepe
  symbol: PEPE
  price: 0.00001
  market_cap: 4e9
  volume_24h: 8e8
`), 0o644))

	snapshots, err := LoadSnapshots(snapYAML)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.NotNil(t, snapshots[0].Return30d)
	assert.Equal(t, 0.12, *snapshots[0].Return30d)
	assert.Nil(t, snapshots[1].Return30d)

	holdJSON := filepath.Join(dir, "holdings.json")
	require.NoError(t, os.WriteFile(holdJSON, []byte(`[
	{"coin_id": "bitcoin", "symbol": "BTC", "amount": "0.5", "value_usd": "32500.10"},
	{"coin_id": "tether", "symbol": "USDT", "amount": 1000, "value_usd": 1000, "is_cash": true}
]`), 0o644))

	holdings, err := LoadHoldings(holdJSON)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "32500.1", holdings[0].Value.String())
	assert.True(t, holdings[1].IsCash)

	_, err = LoadSnapshots(filepath.Join(dir, "snapshots.txt"))
	assert.Error(t, err)
	_, err = LoadHoldings(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
