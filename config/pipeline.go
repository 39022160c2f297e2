package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipekit/pipeline"
)

// StageDef is one stage entry in a pipeline definition file.
type StageDef struct {
	Name      string         `yaml:"name"`
	Component string         `yaml:"component"`
	DependsOn []string       `yaml:"depends_on"`
	Params    map[string]any `yaml:"params"`
}

// PipelineFile is the YAML schema of a pipeline definition.
//
//	name: sensor-catalog
//	stages:
//	  - name: harvest
//	    component: harvester
//	    params: {endpoint: "https://..."}
//	  - name: group
//	    component: grouper
//	    depends_on: [harvest]
//
// When no stage declares depends_on, the stages form a linear chain in
// file order.
type PipelineFile struct {
	Name   string     `yaml:"name"`
	Stages []StageDef `yaml:"stages"`
}

// LoadPipeline reads and parses a pipeline definition file.
func LoadPipeline(path string) (*PipelineFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", path, err)
	}
	var pf PipelineFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file %s: %w", path, err)
	}
	if pf.Name == "" {
		return nil, fmt.Errorf("pipeline file %s: name is required", path)
	}
	if len(pf.Stages) == 0 {
		return nil, fmt.Errorf("pipeline file %s: at least one stage is required", path)
	}
	return &pf, nil
}

// Resolve builds the pipeline graph from a definition, constructing each
// stage through the registry. Stage names in the definition become graph
// stage identities, so one component can appear under several names.
func Resolve(pf *PipelineFile, registry *pipeline.Registry) (*pipeline.Graph, error) {
	stages := make([]pipeline.Stage, 0, len(pf.Stages))
	chained := true
	for _, def := range pf.Stages {
		if def.Name == "" {
			return nil, fmt.Errorf("pipeline %s: every stage needs a name", pf.Name)
		}
		component := def.Component
		if component == "" {
			component = def.Name
		}
		s, err := registry.Build(component, def.Params)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: stage %s: %w", pf.Name, def.Name, err)
		}
		if s.Name() != def.Name {
			s = pipeline.Renamed(s, def.Name)
		}
		stages = append(stages, s)
		if len(def.DependsOn) > 0 {
			chained = false
		}
	}

	if chained {
		return pipeline.Chain(pf.Name, stages)
	}

	var edges []pipeline.Edge
	for _, def := range pf.Stages {
		for _, dep := range def.DependsOn {
			edges = append(edges, pipeline.Edge{From: dep, To: def.Name})
		}
	}
	return pipeline.Build(pf.Name, stages, edges)
}
