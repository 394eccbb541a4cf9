package utils

import "hash/fnv"

// Partition maps a key to one of n partitions. The mapping is stable across
// runs and processes so shuffles and output shards are reproducible.
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() % uint64(n))
}
