// Package runtime provides environment/runtime detection helpers shared across the service layer.
package runtime

import (
	"os"
	"strings"
	"sync"
)

// strictIdentityModeOnce caches the strict identity mode check at startup.
var (
	strictIdentityModeOnce  sync.Once
	strictIdentityModeValue bool
)

// ResetStrictIdentityModeCache resets the cached strict identity mode value.
// This should only be used in tests.
func ResetStrictIdentityModeCache() {
	strictIdentityModeOnce = sync.Once{}
	strictIdentityModeValue = false
}

// StrictIdentityMode returns true when the service should fail closed on identity/security
// boundaries (e.g. only trust identity headers protected by verified mTLS).
//
// We also treat the presence of internal-mTLS credentials as "strict", so a
// mis-set APP_ENV cannot silently weaken trust boundaries when the deployment
// has already been given mTLS material to enforce them with.
func StrictIdentityMode() bool {
	strictIdentityModeOnce.Do(func() {
		env := Env()
		hasInternalTLS := strings.TrimSpace(os.Getenv("INTERNAL_TLS_CERT")) != "" &&
			strings.TrimSpace(os.Getenv("INTERNAL_TLS_KEY")) != "" &&
			strings.TrimSpace(os.Getenv("INTERNAL_TLS_ROOT_CA")) != ""
		strictIdentityModeValue = env == Production || hasInternalTLS
	})
	return strictIdentityModeValue
}
