package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
)

func TestValidatePartitionBounds(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{
			name: "both bounds present",
			text: "SELECT * FROM candles WHERE timestamp >= @start AND timestamp <= @end",
		},
		{
			name: "bounds spread across union branches",
			text: `SELECT * FROM (
				SELECT * FROM candles WHERE timestamp >= @a AND timestamp < @c
				UNION ALL
				SELECT * FROM candles WHERE timestamp > @c AND timestamp <= @b
			)`,
		},
		{
			name: "tolerates uppercase and odd whitespace",
			text: "select * from candles where TIMESTAMP\n\t>= @start and TIMESTAMP   <= @end",
		},
		{
			name:    "missing lower bound",
			text:    "SELECT * FROM candles WHERE timestamp <= @end",
			wantErr: true,
		},
		{
			name:    "missing upper bound",
			text:    "SELECT * FROM candles WHERE timestamp >= @start",
			wantErr: true,
		},
		{
			name:    "strict inequalities do not count as bounds",
			text:    "SELECT * FROM candles WHERE timestamp > @start AND timestamp < @end",
			wantErr: true,
		},
		{
			name:    "unbounded scan",
			text:    "SELECT * FROM candles WHERE symbol = @symbol",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartitionBounds(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
				assert.Equal(t, 1, apperrors.ExitCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

// Every query the builder can emit must pass the partition bound check.
func TestBuilderOutputAlwaysPartitionBounded(t *testing.T) {
	b := NewBuilder("marketdata.candles")

	reqs := []Request{
		{Symbol: "BTCUSDT", Timeframe: "1h", Mode: ModeAll},
		{Symbol: "BTCUSDT", Timeframe: "1d", Mode: ModeRange,
			From: mustTime(t, "2024-01-01T00:00:00Z"), To: mustTime(t, "2024-06-01T00:00:00Z")},
		{Symbol: "ETHUSDT", Timeframe: "5", Exchange: "BINANCE", Mode: ModeNeighborhood,
			Center: mustTime(t, "2024-03-15T12:00:00Z"), NBefore: 100, NAfter: 100},
		{Symbol: "ETHUSDT", Timeframe: "1M", Mode: ModeNeighborhood,
			Center: mustTime(t, "2024-03-15T12:00:00Z"), NBefore: 0, NAfter: 0},
	}
	for _, req := range reqs {
		built, err := b.Build(req)
		require.NoError(t, err, "mode=%s", req.Mode)
		assert.NoError(t, ValidatePartitionBounds(built.Text))
	}
}
