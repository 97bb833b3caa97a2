// Package model defines the provider-agnostic abstractions for talking to
// chat-completion style model endpoints.
//
// Core goals:
//   - Unify blocking + streaming invocation behind a single Client interface
//   - Normalize tool / function call representation (ToolDefinition, deltas)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockClient)
//
// Providers (e.g. OpenAI, Anthropic) implement the Client interface from this
// package so the runner remains decoupled from vendor SDKs.
package model
