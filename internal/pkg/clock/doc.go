// Package clock provides a tiny time abstraction.
//
// Business code depends on Clocker instead of calling time.Now directly, so
// TOTP steps, token expiry and credential freshness can be tested against a
// Fixed clock.
package clock
