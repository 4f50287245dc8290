// Package config loads and validates the relay's runtime configuration from
// a YAML file and AGENTRELAY_-prefixed environment variables. Validation
// enforces the timeout hierarchy invariant at process start: a configuration
// violating it must prevent the process from serving traffic.
package config
