package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/routing"
)

func TestWalk(t *testing.T) {
	from := model.LatLng{Lat: 34.0, Lng: -117.0}
	to := model.LatLng{Lat: 35.0, Lng: -116.0}

	tests := []struct {
		name string
		step int
		loop bool
		want model.LatLng
	}{
		{name: "start", step: 0, want: from},
		{name: "halfway", step: 5, want: model.LatLng{Lat: 34.5, Lng: -116.5}},
		{name: "end", step: 10, want: to},
		{name: "past end stops", step: 14, want: to},
		{name: "past end turns back", step: 14, loop: true, want: model.LatLng{Lat: 34.6, Lng: -116.4}},
		{name: "back at start", step: 20, loop: true, want: from},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := walk(from, to, tt.step, 10, tt.loop)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tt.want.Lng, got.Lng, 1e-9)
		})
	}
}

func TestOffsetStaysWithinJitter(t *testing.T) {
	p := model.LatLng{Lat: 34.1, Lng: -117.71}
	assert.Equal(t, p, offset(p, 0))

	for range 100 {
		moved := offset(p, 5)
		assert.LessOrEqual(t, routing.Haversine(p, moved), 5.1)
	}
}
