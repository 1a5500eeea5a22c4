// Package rate implements the Redis fixed-window login limiter.
//
// # Window semantics
//
// INCR followed by EXPIRE on the first hit of a window. Keys:
//   - <prefix>:login:<email>   per account identifier
//   - <prefix>:logini:<ip>     per client IP, when IP throttling is on
//
// Only failed attempts are counted; a successful login clears the identifier
// counter. Domain policies for 2FA verification live in internal/limiters.
package rate
