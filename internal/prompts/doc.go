// Package prompts defines the fixed, ordered prompt sequence driven against
// the model for each episode, and the validation rules for the responses the
// sequence is expected to produce.
package prompts
