// Package ws streams accepted configuration updates to subscribed exporters
// over WebSocket.
package ws
