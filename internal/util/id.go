package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns an opaque identifier such as "thr_3f2a...". The prefix names
// the entity kind and is omitted when empty.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}
