package datagateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRange(t *testing.T) {
	type testCase struct {
		name             string
		n, start, stop   int64
		expectedFrom     int64
		expectedTo       int64
		expectedNonEmpty bool
	}
	testCases := []testCase{
		{name: "all", n: 5, start: 0, stop: -1, expectedFrom: 0, expectedTo: 4, expectedNonEmpty: true},
		{name: "middle", n: 5, start: 1, stop: 2, expectedFrom: 1, expectedTo: 2, expectedNonEmpty: true},
		{name: "stop_past_end", n: 3, start: 1, stop: 100, expectedFrom: 1, expectedTo: 2, expectedNonEmpty: true},
		{name: "negative_start", n: 5, start: -2, stop: -1, expectedFrom: 3, expectedTo: 4, expectedNonEmpty: true},
		{name: "start_before_head", n: 3, start: -10, stop: 0, expectedFrom: 0, expectedTo: 0, expectedNonEmpty: true},
		{name: "empty_list", n: 0, start: 0, stop: -1},
		{name: "start_after_stop", n: 5, start: 3, stop: 1},
		{name: "start_past_end", n: 5, start: 5, stop: 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			from, to, ok := NormalizeRange(tc.n, tc.start, tc.stop)
			assert.Equal(t, tc.expectedNonEmpty, ok)
			if tc.expectedNonEmpty {
				assert.Equal(t, tc.expectedFrom, from)
				assert.Equal(t, tc.expectedTo, to)
			}
		})
	}
}
