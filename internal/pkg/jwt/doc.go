// Package jwt issues and verifies the two kinds of HS512 tokens the service
// handles: access tokens presented by authenticated callers, and trusted-device
// tokens that let a remembered browser skip the second factor.
//
// Both are signed with distinct secrets so one can never be replayed as the
// other.
package jwt
