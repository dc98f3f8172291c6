package types

// ConfigurationUpdate is the body exchanged by configuration sync. GET
// returns the latest shared configuration, PUT submits a new one.
type ConfigurationUpdate struct {
	// Timestamp is the time of the change in Unix milliseconds. A receiver
	// applies a configuration only when its timestamp is newer than its own.
	Timestamp int64 `json:"timestamp"`

	// Configuration is the exporter configuration as YAML text.
	Configuration string `json:"configuration"`
}

// Event names used on the coordinator's update stream.
const (
	EventConfiguration = "configuration"
)

// Event is the envelope of a message on the coordinator's update stream.
type Event struct {
	Event string              `json:"event"`
	Data  ConfigurationUpdate `json:"data"`
}
