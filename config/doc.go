// Package config loads the settings shared by the router, the file servers
// and the file tier from a YAML file and environment variables, fills in
// defaults and validates the result.
package config
