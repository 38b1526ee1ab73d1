package idhash

import (
	"crypto/sha256"
	"io"

	"github.com/mr-tron/base58"
)

// ComputeDatasetID computes a deterministic dataset_id from the bytes of the
// final output file.
// Formula: base58(SHA256(content))
// Identical output files share an ID, so re-runs land on the same key.
func ComputeDatasetID(content []byte) string {
	hash := sha256.Sum256(content)
	return base58.Encode(hash[:])
}

// ReadDatasetID computes the dataset_id of everything read from r.
func ReadDatasetID(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return base58.Encode(h.Sum(nil)), nil
}
