// Package rpc implements the JSON-RPC 2.0 channel brokers use to report to
// burrow: a websocket server that dispatches to registered method handlers,
// and a small client for sending notifications.
package rpc
