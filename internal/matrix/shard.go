package matrix

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// SizeLimit is the maximum number of jobs GitHub Actions accepts in a
// single matrix.
const SizeLimit = 256

// RequiredShards computes how many shards a matrix of n entries needs.
// The floor-division-plus-one formula reserves one extra shard whenever
// n is an exact multiple of the limit (256 entries "require" 2 shards).
// Callers size --max-shards against this conservative estimate, so the
// formula is kept as-is.
func RequiredShards(n int) int {
	return n/SizeLimit + 1
}

// Shard partitions entries into exactly maxShards contiguous buckets of
// at most SizeLimit entries each, keyed by shard index as a string.
// Trailing buckets may be empty. It fails when the entries don't fit.
func Shard(entries []Entry, maxShards int) (map[string]Include, error) {
	required := RequiredShards(len(entries))
	if required > maxShards {
		return nil, fmt.Errorf(
			"matrix of size %d requires %d shards, but the maximum is %d; consider increasing `--max-shards`",
			len(entries), required, maxShards)
	}

	shards := make(map[string]Include, maxShards)
	for i := 0; i < maxShards; i++ {
		lo := min(i*SizeLimit, len(entries))
		hi := min(lo+SizeLimit, len(entries))
		bucket := entries[lo:hi]
		if bucket == nil {
			bucket = []Entry{}
		}
		shards[strconv.Itoa(i)] = Include{Include: bucket}
	}
	return shards, nil
}

// Emit writes the matrix document as a single line of JSON.
func Emit(w io.Writer, document any) error {
	if err := json.NewEncoder(w).Encode(document); err != nil {
		return fmt.Errorf("encoding matrix: %w", err)
	}
	return nil
}
