// Package chat defines the conversation data model shared by the model
// adapters and the runner: messages, roles and the two tool invocation
// shapes (legacy single function call, parallel tool call list).
//
// The types are transport independent; provider SDK structs are converted to
// and from these shapes at the model adapter boundary.
package chat
