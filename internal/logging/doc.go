// Package logging provides structured JSON logging with size-based file
// rotation. Logs are written under the user log directory so that stdout
// stays reserved for the MCP JSON-RPC stream; CLI runs additionally mirror
// warnings and errors to stderr as text.
package logging
