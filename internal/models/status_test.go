package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMissionStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseMissionStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseMissionStatus("selesai")
	assert.Error(t, err)
	_, err = ParseMissionStatus("")
	assert.Error(t, err)
}

func TestStatusFromLegacy(t *testing.T) {
	assert.Equal(t, StatusCompleted, StatusFromLegacy(true))
	assert.Equal(t, StatusNotStarted, StatusFromLegacy(false))
}
