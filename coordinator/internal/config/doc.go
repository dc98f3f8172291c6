// Package config loads the coordinator configuration file.
package config
