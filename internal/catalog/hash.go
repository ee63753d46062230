package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// FileSHA256 hashes a catalog source file. The store keys cached match
// runs on this so a republished monthly table invalidates them.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "catalog: open file for hashing")
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrap(err, "catalog: hash file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
