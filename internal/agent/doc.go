// Package agent runs LLM turns: it binds a provider selection to a fantasy
// client, drives the streaming tool loop and maps provider failures to
// user-facing errors.
package agent
