// Package otp implements the TOTP engine used by the second factor.
//
// Secrets are 160-bit random values rendered as base32 together with an
// otpauth:// provisioning URI. Verification scans a fixed window of time steps
// around the reference time and reports which step matched, so callers can
// reject a code whose step has already been accepted.
package otp
