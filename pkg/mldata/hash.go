package mldata

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
)

// hashChunkSize bounds memory use while hashing regardless of file size.
const hashChunkSize = 64 * 1024

// HashContent computes the SHA-1 digest of the upload stream in 64 KiB
// chunks and rewinds the stream to its start before returning, because
// the same stream is subsequently handed to the blob store. Hash, rewind,
// upload is the mandatory order: uploading first would consume the stream.
func HashContent(r io.ReadSeeker) (string, error) {
	h := sha1.New()
	buf := make([]byte, hashChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("hashing upload: %w", err)
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding upload after hashing: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
