// Package validator checks request and command structs against their
// `validate` tags and reports failures keyed by snake_case field name.
//
// The v10 implementation also registers otp_code (6 to 8 digits),
// recovery_code (XXXX-XXXX-XXXX, loosely) and second_factor, which accepts
// either.
package validator
