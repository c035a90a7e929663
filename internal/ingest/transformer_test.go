package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		value  string
		want   string
		wantOk bool
	}{
		{value: "2024-01-15", want: "2024-01-15", wantOk: true},
		{value: "31.01.2026", want: "2026-01-31", wantOk: true},
		{value: "31.01.26", want: "2026-01-31", wantOk: true},
		{value: "05.03.95", want: "1995-03-05", wantOk: true},
		{value: "1/15/2024", want: "2024-01-15", wantOk: true},
		{value: "01/15/2024", want: "2024-01-15", wantOk: true},
		{value: "2024/01/15", want: "2024-01-15", wantOk: true},
		{value: "Jan 5, 2024", want: "2024-01-05", wantOk: true},
		{value: "5 January 2024", want: "2024-01-05", wantOk: true},
		{value: "2024-01-15T10:30:00Z", want: "2024-01-15", wantOk: true},
		{value: "45292", want: "2024-01-01", wantOk: true},
		{value: "31.02.2026", wantOk: false},
		{value: "32.01.2026", wantOk: false},
		{value: "tomorrow", wantOk: false},
		{value: "", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := NormalizeDate(tt.value)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDateTransform(t *testing.T) {
	out, ok := DateTransform(row.String("15.01.2024"))
	assert.True(t, ok)
	assert.Equal(t, row.String("2024-01-15"), out)

	out, ok = DateTransform(row.Number(45292))
	assert.True(t, ok)
	assert.Equal(t, row.String("2024-01-01"), out)

	_, ok = DateTransform(row.String("not a date"))
	assert.False(t, ok)
	_, ok = DateTransform(row.Bool(true))
	assert.False(t, ok)
}

func TestFloatTransform(t *testing.T) {
	tests := []struct {
		name   string
		in     row.Value
		want   float64
		wantOk bool
	}{
		{name: "plain", in: row.String("12.5"), want: 12.5, wantOk: true},
		{name: "currency and separators", in: row.String("$1,234.50"), want: 1234.5, wantOk: true},
		{name: "negative", in: row.String("-3"), want: -3, wantOk: true},
		{name: "number passes through", in: row.Number(7), want: 7, wantOk: true},
		{name: "letters only", in: row.String("abc"), wantOk: false},
		{name: "leading number before dash", in: row.String("1-2"), want: 1, wantOk: true},
		{name: "repeated dots keep prefix", in: row.String("1.2.3"), want: 1.2, wantOk: true},
		{name: "leading dot", in: row.String(".5 kg"), want: 0.5, wantOk: true},
		{name: "dash only", in: row.String("-"), wantOk: false},
		{name: "double dash", in: row.String("--5"), wantOk: false},
		{name: "bool", in: row.Bool(true), wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := FloatTransform(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				n, isNum := out.Num()
				assert.True(t, isNum)
				assert.Equal(t, tt.want, n)
			}
		})
	}
}

func TestIntTransformTruncates(t *testing.T) {
	out, ok := IntTransform(row.String("10.9"))
	assert.True(t, ok)
	assert.Equal(t, row.Number(10), out)

	_, ok = IntTransform(row.String("ten"))
	assert.False(t, ok)
}

func TestFlagTransform(t *testing.T) {
	tests := []struct {
		in   row.Value
		want row.Value
	}{
		{in: row.String("Yes"), want: row.Number(1)},
		{in: row.String("TRUE"), want: row.Number(1)},
		{in: row.String("1"), want: row.Number(1)},
		{in: row.String("no"), want: row.Number(0)},
		{in: row.String("maybe"), want: row.Number(0)},
		{in: row.Bool(false), want: row.Number(0)},
		{in: row.Bool(true), want: row.Number(1)},
		{in: row.Number(0), want: row.Number(0)},
	}
	for _, tt := range tests {
		out, ok := FlagTransform(tt.in)
		assert.True(t, ok, tt.in.String())
		assert.Equal(t, tt.want, out, tt.in.String())
	}
}
