// Minimal Telegram Bot API client covering the handful of methods the relay daemon needs.
//
// This is not a general-purpose SDK: it speaks JSON to the HTTPS endpoint, decodes the
// standard ok/result/error_code envelope, and exposes typed errors so callers can surface
// the API's human-readable description to users. Outbound calls go through an optional
// shared rate limiter to stay under Telegram's global send limits.
package telegram
