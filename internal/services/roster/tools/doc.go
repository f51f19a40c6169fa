// Package tools exposes roster operations as MCP tools.
//
// Every tool acts for a caller system. Over HTTP the caller comes from a
// bearer token; over stdio it is fixed by configuration.
package tools
