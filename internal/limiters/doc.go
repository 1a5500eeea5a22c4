// Package limiters provides the 2FA verification limiters.
//
//   - [VerificationLimiter]: failure budget per email for one verification
//     scope. The engine runs one for login codes (otpv:) and one for recovery
//     codes (rcv:).
//   - [SendCodeLimiter]: request budget per email for emailed codes (sndc:).
//
// Both use Redis fixed windows and are nil-safe: every method on a nil
// receiver returns nil. They count and report; flow functions decide what a
// limit means.
package limiters
