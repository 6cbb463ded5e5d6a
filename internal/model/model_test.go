package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{in: "2024-01-08", want: "2024-01-08"},
		{in: " 2024-02-29 ", want: "2024-02-29"},
		{in: "2023-02-29", wantErr: true},
		{in: "2024-1-8", wantErr: true},
		{in: "08/01/2024", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_Scan(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	tests := []struct {
		name    string
		src     any
		want    Date
		wantErr bool
	}{
		{name: "time", src: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), want: "2024-01-08"},
		{name: "time keeps its own zone", src: time.Date(2024, 1, 8, 0, 30, 0, 0, lagos), want: "2024-01-08"},
		{name: "text", src: "2024-01-08", want: "2024-01-08"},
		{name: "timestamp text", src: "2024-01-08T00:00:00Z", want: "2024-01-08"},
		{name: "bytes", src: []byte("2024-01-08"), want: "2024-01-08"},
		{name: "null", src: nil, want: ""},
		{name: "short text", src: "2024", wantErr: true},
		{name: "number", src: int64(20240108), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := d.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDate_Calendar(t *testing.T) {
	d := Date("2024-02-28")
	assert.Equal(t, Date("2024-02-29"), d.AddDays(1))
	assert.Equal(t, Date("2024-03-01"), d.AddDays(2))
	assert.Equal(t, Date("2023-12-31"), Date("2024-01-01").AddDays(-1))
	assert.Equal(t, time.Monday, Date("2024-01-08").Weekday())
	assert.Equal(t, time.Saturday, Date("2024-01-13").Weekday())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28", v)
	assert.Equal(t, "2024-01-08", DateOf(time.Date(2024, 1, 8, 23, 59, 0, 0, time.UTC)).String())
}
