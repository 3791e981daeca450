package filesystem

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ContentDigest returns the hex BLAKE3 digest of file content. The
// traversal compares digests to decide whether an existing file already
// carries the content its source prescribes.
func ContentDigest(content []byte) string {
	hasher := blake3.New()
	_, _ = hasher.Write(content)

	return hex.EncodeToString(hasher.Sum(nil))
}
