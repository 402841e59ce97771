package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPageOptions_Normalize(t *testing.T) {
	o := PageOptions{}.Normalize()
	assert.Equal(t, int64(1), o.Page)
	assert.Equal(t, int64(100), o.Limit)
	assert.Equal(t, int64(0), o.Skip())

	o = PageOptions{Page: 3, Limit: 10}.Normalize()
	assert.Equal(t, int64(20), o.Skip())
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, PageOptions{Page: 2, Limit: 2}, 5)
	assert.Equal(t, int64(3), p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPrevPage)

	empty := NewPage[int](nil, PageOptions{Page: 1, Limit: 10}, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, int64(0), empty.TotalPages)
	assert.False(t, empty.HasNextPage)
	assert.False(t, empty.HasPrevPage)
}

func TestBusinessApplyDefaults(t *testing.T) {
	b := &Business{PaymentGateway: &PaymentGateway{}}
	b.ApplyDefaults(timeNowForTest)
	assert.Equal(t, BusinessDraft, b.Status)
	assert.Equal(t, "#3B82F6", b.Branding.Colors.Primary)
	assert.Equal(t, 2, b.Settings.MaxDevicesPerUser)
	assert.Equal(t, GatewayMaclink, b.PaymentGateway.Provider)
	assert.Equal(t, 2.5, b.PaymentGateway.Percentage)
	assert.Equal(t, timeNowForTest, b.Analytics.LastUpdated)
}

var timeNowForTest = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
