package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrChecksumMismatch = errors.New("dataset checksum mismatch")

// Checksum returns the checksum declared on the first line and the SHA-256
// of everything after it, both as lowercase hex.
func Checksum(r io.Reader) (declared, computed string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("read dataset: %w", err)
	}

	head, rest, found := bytes.Cut(data, []byte("\n"))
	if !found {
		return "", "", fmt.Errorf("%w: no checksum line", ErrMalformedRow)
	}

	sum := sha256.Sum256(rest)
	declared = strings.ToLower(strings.TrimSpace(string(head)))
	return declared, hex.EncodeToString(sum[:]), nil
}

// Verify fails with ErrChecksumMismatch when the declared checksum does not
// match the content.
func Verify(r io.Reader) error {
	declared, computed, err := Checksum(r)
	if err != nil {
		return err
	}
	if declared != computed {
		return fmt.Errorf("%w: declared %s, computed %s", ErrChecksumMismatch, declared, computed)
	}
	return nil
}
