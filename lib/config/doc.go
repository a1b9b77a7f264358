// Package config holds the configuration of the litemap command line tools.
package config
