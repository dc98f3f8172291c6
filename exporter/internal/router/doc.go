// Package router chooses which host port a scrape talks to.
//
// A management server is often reachable on more than one port: a dedicated
// REST port configured by the operator, and the port the exporter itself was
// configured with. Router walks those candidates, preferring ports that have
// worked before according to a SuccessSet shared by every router in the
// process, and drops a port once it fails with a connectivity error.
package router
