// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira-identity/pkg/pagination"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  pagination.Params
	}{
		{"defaults", "", pagination.Params{Page: 1, Limit: 20}},
		{"explicit", "?page=3&limit=50", pagination.Params{Page: 3, Limit: 50}},
		{"limit_capped", "?limit=500", pagination.Params{Page: 1, Limit: pagination.MaxLimit}},
		{"limit_at_cap", "?limit=100", pagination.Params{Page: 1, Limit: 100}},
		{"non_positive", "?page=0&limit=-5", pagination.Params{Page: 1, Limit: 20}},
		{"garbage", "?page=two&limit=ten", pagination.Params{Page: 1, Limit: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/api/v1/users"+tt.query, nil)
			assert.Equal(t, tt.want, pagination.FromRequest(request))
		})
	}
}

func TestParams_OffsetAndMeta(t *testing.T) {
	params := pagination.Params{Page: 3, Limit: 10}

	assert.Equal(t, 20, params.Offset())
	assert.Equal(t, pagination.Meta{Page: 3, Limit: 10, Total: 25, TotalPages: 3, HasNext: false, HasPrev: true},
		params.Meta(25))

	first := pagination.Params{Page: 1, Limit: 10}.Meta(25)
	assert.True(t, first.HasNext)
	assert.False(t, first.HasPrev)

	empty := pagination.Params{}.Normalize().Meta(0)
	assert.Zero(t, empty.TotalPages)
	assert.False(t, empty.HasNext)
}
