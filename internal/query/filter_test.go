package query

import (
	"testing"
	"time"

	"payload-log/internal/model"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name string
		q    model.LogQuery
		line string
		ts   *time.Time
		want bool
	}{
		{"empty query", model.LogQuery{}, "anything", nil, true},
		{"before from", model.LogQuery{From: at("2024-01-01T00:00:10Z")}, "x", at("2024-01-01T00:00:09Z"), false},
		{"equal from kept", model.LogQuery{From: at("2024-01-01T00:00:10Z")}, "x", at("2024-01-01T00:00:10Z"), true},
		{"equal from excluded", model.LogQuery{From: at("2024-01-01T00:00:10Z"), ExcludeFromBoundary: true}, "x", at("2024-01-01T00:00:10Z"), false},
		{"after from excluded boundary", model.LogQuery{From: at("2024-01-01T00:00:10Z"), ExcludeFromBoundary: true}, "x", at("2024-01-01T00:00:10.000000001Z"), true},
		{"after to", model.LogQuery{To: at("2024-01-01T00:00:10Z")}, "x", at("2024-01-01T00:00:11Z"), false},
		{"equal to kept", model.LogQuery{To: at("2024-01-01T00:00:10Z")}, "x", at("2024-01-01T00:00:10Z"), true},
		{"no timestamp passes bounds", model.LogQuery{From: at("2024-01-01T00:00:10Z"), To: at("2024-01-01T00:00:20Z")}, "x", nil, true},
		{"keyword case-insensitive", model.LogQuery{Keyword: ptr("ERROR")}, "an error occurred", nil, true},
		{"keyword missing", model.LogQuery{Keyword: ptr("error")}, "all good", nil, false},
		{"empty keyword matches", model.LogQuery{Keyword: ptr("")}, "all good", nil, true},
		{"status match", model.LogQuery{StatusCode: ptr(404)}, "GET /x status=404", nil, true},
		{"status mismatch", model.LogQuery{StatusCode: ptr(404)}, "GET /x status=200", nil, false},
		{"status absent", model.LogQuery{StatusCode: ptr(404)}, "GET /x 404", nil, false},
		{"all filters", model.LogQuery{
			From:       at("2024-01-01T00:00:00Z"),
			To:         at("2024-01-02T00:00:00Z"),
			Keyword:    ptr("/orders"),
			StatusCode: ptr(500),
		}, `GET /Orders {"status": 500}`, at("2024-01-01T12:00:00Z"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFilter(tt.q).Match(tt.line, tt.ts))
		})
	}
}

func TestFilterDoesNotKeepQueryAlias(t *testing.T) {
	kw := "Error"
	q := model.LogQuery{Keyword: &kw}
	f := NewFilter(q)
	kw = "other"

	assert.True(t, f.Match("ERROR here", nil))
}
