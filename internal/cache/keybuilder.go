package cache

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GuestSegment stands in for the anonymous user in keys
const GuestSegment = "guest"

// KeyBuilder turns resource parameters into deterministic cache keys
type KeyBuilder struct{}

// NewKeyBuilder creates a new KeyBuilder instance
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

// Build joins resource and parts with ':'
func (kb *KeyBuilder) Build(resource string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, resource)
	segments = append(segments, parts...)
	return strings.Join(segments, ":")
}

// BuildForUser builds a per-user key, mapping the anonymous user to guest
func (kb *KeyBuilder) BuildForUser(resource, userID string, parts ...string) string {
	if userID == "" {
		userID = GuestSegment
	}
	return kb.Build(resource, append([]string{userID}, parts...)...)
}

// BuildForParams hashes arbitrary parameters into the key
func (kb *KeyBuilder) BuildForParams(resource string, params interface{}) (string, error) {
	if resource == "" {
		return "", errors.New("resource cannot be empty")
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	hasher := md5.New()
	hasher.Write(paramsJSON)

	return fmt.Sprintf("%s:%x", resource, hasher.Sum(nil)), nil
}
