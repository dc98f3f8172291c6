// Package config loads, serializes and watches the exporter configuration.
//
// A configuration names the management server to query (host, port, the
// optional dedicated restPort/restHostName and the protocol), output options
// (metricsNameSnakeCase, domainQualifier) and the ordered list of queries,
// each a named selector tree:
//
//	host: wls.example.com
//	port: 7001
//	restPort: 7651
//	queries:
//	  - applicationRuntimes:
//	      key: name
//	      keyName: app
//	      componentRuntimes:
//	        type: WebAppComponentRuntime
//	        prefix: webapp_config_
//	        key: name
//	        values: [deploymentState, openSessionsCurrentCount]
//
// Parse and Load build a validated *Config. Live holds the configuration in
// use: it is swapped atomically on Replace and Append so that a scrape always
// sees a complete configuration, and it carries the configuration timestamp
// used by cross-instance sync plus the domain name discovered at runtime.
//
// Watch reloads the file on change and hands each valid configuration to a
// callback; invalid edits are logged and ignored.
package config
