package fees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

func TestSplitFixedPoints(t *testing.T) {
	cases := []struct {
		total, bps         uint64
		referrer, treasury uint64
	}{
		{1000, 300, 30, 970},
		{1000, 0, 0, 1000},
		{1000, 10000, 1000, 0},
		{999, 1, 0, 999},
		{0, 500, 0, 0},
		{math.MaxUint64, 10000, math.MaxUint64, 0},
	}
	for _, tc := range cases {
		ref, tre, err := Split(domain.Amount(tc.total), uint16(tc.bps))
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(tc.referrer), ref, "referrer for %d@%d", tc.total, tc.bps)
		assert.Equal(t, domain.Amount(tc.treasury), tre, "treasury for %d@%d", tc.total, tc.bps)
	}
}

func TestSplitRejectsBpsAboveMax(t *testing.T) {
	_, _, err := Split(1000, models.MaxBps+1)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidBps))
}

func TestSplitConservesTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := domain.Amount(rapid.Uint64().Draw(t, "total"))
		bps := rapid.Uint16Range(0, models.MaxBps).Draw(t, "bps")

		ref, tre, err := Split(total, bps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ref+tre != total {
			t.Fatalf("split(%d, %d) = (%d, %d) does not sum to total", total, bps, ref, tre)
		}
		if ref > total {
			t.Fatalf("referrer share %d exceeds total %d", ref, total)
		}
	})
}

func TestQuote(t *testing.T) {
	cfg := &models.Config{RegistrationFee: 1000, NativeAsset: "near"}

	t.Run("native asset uses registration fee", func(t *testing.T) {
		fee, err := Quote(cfg, nil, "near")
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(1000), fee)
	})

	t.Run("enabled asset uses its fee", func(t *testing.T) {
		fee, err := Quote(cfg, &models.AssetFee{Asset: "usdc", Amount: 5, Enabled: true}, "usdc")
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(5), fee)
	})

	t.Run("disabled or unknown asset is rejected", func(t *testing.T) {
		_, err := Quote(cfg, &models.AssetFee{Asset: "usdc", Amount: 5}, "usdc")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAssetNotAllowed))
		_, err = Quote(cfg, nil, "usdc")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAssetNotAllowed))
	})
}

func TestSettle(t *testing.T) {
	s, err := Settle(1000, 1200, 300)
	require.NoError(t, err)
	assert.Equal(t, Settlement{Total: 1000, Referrer: 30, Treasury: 970, Change: 200}, s)

	_, err = Settle(1000, 999, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongFee))
}
