package policy

// RetryBudget returns how many additional attempts (beyond the first) an
// operation may make, per spec.md §7's retry policy: idempotent operations
// (tagged "idempotent" in their advertisement's capabilities) may be
// retried up to a small fixed budget; non-idempotent operations are never
// retried automatically.
func RetryBudget(idempotent bool, configuredBudget int) int {
	if !idempotent {
		return 0
	}
	if configuredBudget <= 0 {
		return 2
	}
	return configuredBudget
}
