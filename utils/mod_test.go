package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	require.Equal(t, 0, Partition("anything", 1))
	require.Equal(t, 0, Partition("anything", 0))

	counts := make([]int, 4)
	for _, key := range []string{"---", "X--", "-X-", "--X", "XO-", "X-O", "OX-", "-XO"} {
		p := Partition(key, 4)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, 4)
		require.Equal(t, p, Partition(key, 4), "partitioning must be stable")
		counts[p]++
	}
	require.Equal(t, 8, counts[0]+counts[1]+counts[2]+counts[3])
}
