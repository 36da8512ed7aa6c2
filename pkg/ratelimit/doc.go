// Package ratelimit provides rate limiting functionality for the Messenger dumper.
//
// This package implements multiple rate limiting algorithms to pace page
// requests and attachment downloads so the account does not get flagged.
//
// Available Implementations:
//
// Token Bucket:
//   - Tokens accrue continuously at the configured rate up to a burst capacity
//   - Suitable for burst traffic followed by quiet periods
//   - Default implementation used by the dumper and download pool
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - More accurate rate limiting over time
//   - Better for consistent request patterns
//
// Interface:
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait(ctx) error - Block until a request is allowed or ctx is cancelled
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// Token bucket: 60 requests per minute with a burst of 5
//	limiter := ratelimit.NewLimiter(60, 5)
//
//	if limiter.Allow() {
//	    // Proceed with request
//	} else {
//	    // Wait for a token
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
//
//	// Sliding window: 100 requests per 15 minutes
//	limiter := ratelimit.NewSlidingWindow(100, 15*time.Minute)
//
//	// Block until allowed
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// Proceed with request
package ratelimit
