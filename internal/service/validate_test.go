package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageBounds(t *testing.T) {
	cases := []struct {
		name                 string
		page, size           int
		offset, wantP, wantS int
	}{
		{"defaults", 0, 0, 0, 1, defaultPageSize},
		{"second page", 2, 10, 10, 2, 10},
		{"size capped", 3, 500, 2 * maxPageSize, 3, maxPageSize},
		{"negative page", -7, 10, 0, 1, 10},
		{"huge page", math.MaxInt, maxPageSize, (maxPage - 1) * maxPageSize, maxPage, maxPageSize},
		{"huge page and size", math.MaxInt / 2, math.MaxInt, (maxPage - 1) * maxPageSize, maxPage, maxPageSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			off, p, s := pageBounds(tc.page, tc.size)
			assert.Equal(t, tc.offset, off)
			assert.Equal(t, tc.wantP, p)
			assert.Equal(t, tc.wantS, s)
			assert.GreaterOrEqual(t, off, 0)
		})
	}
}
