// Package schemas embeds the JSON Schemas of resultsum's YAML files.
package schemas

import _ "embed"

// ConfigSchemaJSON is the schema of .resultsum.yaml.
//
//go:embed config.schema.json
var ConfigSchemaJSON string

// ExperimentSchemaJSON is the schema of an experiment's job_config.yaml.
//
//go:embed experiment.schema.json
var ExperimentSchemaJSON string
