// Package gemini implements the HTTP client for the hosted generative model:
// file uploads with digest-based reuse, prompt submission against uploaded
// audio, and the retry/backoff policy for transient API failures.
//
// Upload calls make a single attempt so callers can own the retry budget;
// content generation retries internally because a prompt retry never needs
// coordination with other in-flight work.
package gemini
