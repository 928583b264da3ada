// Package notifier delivers reminder pushes to a remote service.
//
// Service.Send is synchronous: it rate-limits, retries transient failures
// with jittered backoff, and bounds the whole call by a timeout. Delivery is
// delegated to a Sender (Pushover, Telegram or the log). A send can be
// skipped rather than failed, e.g. during quiet hours or when credentials
// are missing; skips match ErrSkipped.
//
// # History
//
// For debugging, the service keeps a small in-memory history of recent sends.
package notifier
