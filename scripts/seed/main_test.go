package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedWorkersReferenceKnownCenters(t *testing.T) {
	names := make(map[string]bool, len(centers))
	for _, c := range centers {
		require.False(t, names[c.Name], "duplicate center %s", c.Name)
		names[c.Name] = true
	}
	codes := make(map[string]bool, len(workers))
	for _, w := range workers {
		require.True(t, names[w.Center], "worker %s center %s", w.Code, w.Center)
		require.False(t, codes[w.Code], "duplicate worker %s", w.Code)
		codes[w.Code] = true
	}
	require.Len(t, workers, 7)
}
