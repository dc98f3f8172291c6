package api

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error string `json:"error"`
}

// configurationResponse is returned by a successful configuration change.
type configurationResponse struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
	Queries   int    `json:"queries"`
}
