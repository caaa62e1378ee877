package rediskeys

import (
	"fmt"

	"gitlab.com/timkado/api/daisi-feed-client/pkg/crypto"
)

// CredentialKey is the Redis key holding the credential pair of one client profile.
// The profile name is hashed so account names never appear in key listings.
func CredentialKey(profile string) string {
	return fmt.Sprintf("feedctl:credentials:%s", crypto.Sha256Hex(profile))
}

// RefreshLockKey is the Redis key that serializes credential refreshes of one profile.
func RefreshLockKey(profile string) string {
	return fmt.Sprintf("feedctl:refresh_lock:%s", crypto.Sha256Hex(profile))
}

// InvalidationChannel is the pub/sub channel carrying cache invalidation events.
func InvalidationChannel(base string) string {
	if base == "" {
		base = "feedctl"
	}
	return fmt.Sprintf("%s:invalidations", base)
}

// InvalidationSubject is the NATS subject carrying cache invalidation events.
func InvalidationSubject(base string) string {
	if base == "" {
		base = "feedctl"
	}
	return fmt.Sprintf("%s.invalidations", base)
}
