// Package checksum computes the canonical content fingerprint for a skill's
// file set. Two file sets compare equal exactly when their checksums are
// bit-for-bit equal.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/congwa/skillmgr/internal/fstree"
)

// Compute returns the canonical checksum of a file tree: each file hashed as
// (relative path, content), the per-file digests concatenated in path order,
// and the result hashed again. Deterministic under map iteration order,
// sensitive to path, content, and presence of every file, insensitive to
// filesystem metadata. An empty tree has an empty checksum.
func Compute(tree fstree.Tree) string {
	if len(tree) == 0 {
		return ""
	}

	outer := sha256.New()
	for _, path := range tree.Paths() {
		inner := sha256.New()
		inner.Write([]byte(path))
		inner.Write([]byte{0})
		inner.Write(tree[path])
		outer.Write(inner.Sum(nil))
	}
	return hex.EncodeToString(outer.Sum(nil))
}

// File returns the hex-encoded sha256 of a single file's content. Used for
// backup verification.
func File(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Dir reads the tree at root and computes its checksum. A missing root
// returns an empty checksum and the stat error.
func Dir(ctx context.Context, root string) (string, error) {
	tree, err := fstree.Read(ctx, root)
	if err != nil {
		return "", err
	}
	return Compute(tree), nil
}
