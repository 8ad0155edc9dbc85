package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
)

func TestParseVenue(t *testing.T) {
	v, err := parseVenue("3:Harbour Bar:Pier 4")
	require.NoError(t, err)
	assert.Equal(t, loyalty.Venue{ID: 3, Name: "Harbour Bar", Location: "Pier 4"}, v)

	v, err = parseVenue("4: The Anchor ")
	require.NoError(t, err)
	assert.Equal(t, loyalty.Venue{ID: 4, Name: "The Anchor"}, v)

	for _, bad := range []string{"", "5", "x:Name", "0:Name", "6:"} {
		_, err := parseVenue(bad)
		assert.Error(t, err, bad)
	}
}
