package fileutil

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// WriteStream streams r into a newly created file at dst with the given mode.
// dst must not already exist. The destination is closed before returning.
func WriteStream(dst string, r io.Reader, mode os.FileMode) (int64, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		return written, err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return written, err
	}
	return written, out.Close()
}

// Digests holds the digests of one file computed in a single pass.
type Digests struct {
	Size   int64
	MD5    string
	SHA256 string

	sha256 []byte
}

// DigestFile reads path once, computing MD5 and SHA-256 together.
func DigestFile(path string) (Digests, error) {
	in, err := os.Open(path)
	if err != nil {
		return Digests{}, err
	}
	defer in.Close()

	md5Hasher := md5.New()
	shaHasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(md5Hasher, shaHasher), in)
	if err != nil {
		return Digests{}, err
	}
	sum := shaHasher.Sum(nil)
	return Digests{
		Size:   size,
		MD5:    hex.EncodeToString(md5Hasher.Sum(nil)),
		SHA256: hex.EncodeToString(sum),
		sha256: sum,
	}, nil
}

// ContentAddress renders the SHA-256 digest as a CIDv1 (raw codec, sha2-256 multihash).
func (d Digests) ContentAddress() (string, error) {
	if len(d.sha256) != sha256.Size {
		return "", errors.New("content address requires a sha-256 digest")
	}
	mh, err := multihash.Encode(d.sha256, multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
