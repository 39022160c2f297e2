// Package config loads orchestrator configuration and pipeline definitions.
//
// Orchestrator settings come from a YAML file merged with environment
// variables (an optional .env file is loaded first). Pipeline topology lives
// in a separate YAML document that is resolved against a stage registry.
package config
