// Package configsync keeps the configuration of several exporter instances in
// step through a coordinator.
//
// The wire format is types.ConfigurationUpdate: GET on the coordinator URL
// returns the latest shared configuration, PUT submits this instance's
// configuration. A shared configuration replaces the local one only when its
// timestamp is newer than the local timestamp. Updates are polled every
// interval and, when a stream URL is set, also received as they happen over a
// websocket.
package configsync
