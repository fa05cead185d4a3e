package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want time.Time
	}{
		{
			name: "rfc3339 utc",
			line: "2024-01-01T00:00:00Z v1:{} [status:200]",
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "space separator without zone is utc",
			line: "2024-01-01 10:20:30 request done",
			want: time.Date(2024, 1, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name: "bracketed with fraction",
			line: "[2024-03-05T06:07:08.123] GET /",
			want: time.Date(2024, 3, 5, 6, 7, 8, 123_000_000, time.UTC),
		},
		{
			name: "seven digit fraction and colon offset",
			line: "2024-01-01T09:00:00.1234567+09:00 x",
			want: time.Date(2024, 1, 1, 0, 0, 0, 123_456_700, time.UTC),
		},
		{
			name: "compact offset",
			line: "2024-01-01T09:00:00-0130 x",
			want: time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name: "fraction beyond nanoseconds is truncated",
			line: "2024-01-01T00:00:00.1234567891234Z",
			want: time.Date(2024, 1, 1, 0, 0, 0, 123_456_789, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractTimestamp(tc.line)
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "got %s want %s", got, tc.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestExtractTimestampAbsent(t *testing.T) {
	for _, line := range []string{
		"",
		"no timestamp here",
		"  2024-01-01T00:00:00Z leading space",
		"prefix 2024-01-01T00:00:00Z",
		"2024-13-45T00:00:00Z invalid date",
		"2024-01-01T25:00:00Z invalid hour",
		"2024-01-01",
	} {
		assert.Nil(t, ExtractTimestamp(line), "line %q", line)
	}
}

func TestExtractStatusCode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want int
	}{
		{name: "bracket tag", line: `2024-01-01T00:00:00Z v1:{...} [status:404]`, want: 404},
		{name: "equals", line: "GET / status=201 took 3ms", want: 201},
		{name: "case insensitive with space", line: "Status: 503", want: 503},
		{name: "statusCode key", line: "statusCode=302", want: 302},
		{name: "quoted json key", line: `{"method":"GET", "status": 500}`, want: 500},
		{name: "single quoted key", line: `{'status':418}`, want: 418},
		{
			name: "key=value wins over quoted key",
			line: `{"status":500} [status:200]`,
			want: 200,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractStatusCode(tc.line)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestExtractStatusCodeAbsent(t *testing.T) {
	for _, line := range []string{
		"",
		"status unknown",
		"status=20",
		`{"state":200}`,
	} {
		assert.Nil(t, ExtractStatusCode(line), "line %q", line)
	}
}
