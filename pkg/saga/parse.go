// SPDX-License-Identifier: AGPL-3.0-or-later

package saga

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Feature: CORE_SAGA_PARSE
// Spec: spec.md section 6 (External Interfaces - workflow definition YAML)

// document mirrors the YAML wire shape: a top-level "executions" key
// holding the ordered step list (spec.md section 6). name/version are not
// part of the YAML body - they are supplied by the WorkflowStore record the
// body is attached to, keeping name/version as columns alongside a
// yaml_content blob. The clean WorkflowDefinition the orchestrator operates
// on is assembled from this after validation, separating the wire shape
// from the validated in-memory definition.
type document struct {
	Executions []rawStep `yaml:"executions"`
}

type rawStep struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Endpoint rawEndpoint       `yaml:"endpoint"`
	Body     any               `yaml:"body"`
	Success  *rawSuccess       `yaml:"success"`
	Rollback *rawCompensation  `yaml:"rollback"`
}

type rawEndpoint struct {
	URL          string            `yaml:"url"`
	Method       string            `yaml:"method"`
	Topic        string            `yaml:"topic"`
	PartitionKey string            `yaml:"partition_key"`
	Headers      map[string]string `yaml:"headers"`
}

type rawSuccess struct {
	Condition string            `yaml:"condition"`
	Extract   map[string]string `yaml:"extract"`
}

type rawCompensation struct {
	Type     string      `yaml:"type"`
	Endpoint rawEndpoint `yaml:"endpoint"`
	Body     any         `yaml:"body"`
}

// Parse decodes and eagerly validates a workflow definition from YAML bytes,
// returning the ordered, validated step list. On any structural problem it
// returns a *ParseError; the orchestrator requires this to happen before
// RUNNING begins, with no steps recorded (spec.md section 4.4, step 1).
//
// name and version are not part of the YAML body (see document) - callers
// that load a definition from a WorkflowStore use Define to attach them.
func Parse(data []byte) ([]StepDefinition, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	if len(doc.Executions) == 0 {
		return nil, &ParseError{Reason: "workflow must declare at least one step under executions"}
	}

	seen := make(map[string]bool, len(doc.Executions))
	steps := make([]StepDefinition, 0, len(doc.Executions))
	for i, rs := range doc.Executions {
		if rs.Name == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("step %d: name is required", i)}
		}
		if seen[rs.Name] {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate step name %q", rs.Name)}
		}
		seen[rs.Name] = true

		step, err := validateStep(rs)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// Define parses yamlContent and assembles a full WorkflowDefinition with
// the given name and version, as stored by a WorkflowStore.
func Define(name, version string, yamlContent []byte) (*WorkflowDefinition, error) {
	if name == "" {
		return nil, &ParseError{Reason: "workflow name is required"}
	}
	steps, err := Parse(yamlContent)
	if err != nil {
		return nil, err
	}
	return &WorkflowDefinition{Name: name, Version: version, Steps: steps}, nil
}

func validateStep(rs rawStep) (StepDefinition, error) {
	stepType := StepType(rs.Type)
	switch stepType {
	case StepTypeAPI:
		if rs.Endpoint.URL == "" {
			return StepDefinition{}, &ParseError{Reason: fmt.Sprintf("step %q: api endpoint requires url", rs.Name)}
		}
		method := rs.Endpoint.Method
		if method == "" {
			method = "POST"
		}
		rs.Endpoint.Method = method
	case StepTypeBus:
		if rs.Endpoint.Topic == "" {
			return StepDefinition{}, &ParseError{Reason: fmt.Sprintf("step %q: bus endpoint requires topic", rs.Name)}
		}
	default:
		// Unknown step types are accepted at parse time (spec.md section 7:
		// UNKNOWN_STEP_TYPE is a programmer error raised by the dispatcher,
		// not a parse failure) - the orchestrator rejects them at dispatch.
	}

	var success *SuccessSpec
	if rs.Success != nil {
		success = &SuccessSpec{Condition: rs.Success.Condition, Extract: rs.Success.Extract}
	}

	rollback, err := validateCompensation(rs.Name, rs.Rollback)
	if err != nil {
		return StepDefinition{}, err
	}

	return StepDefinition{
		Name: rs.Name,
		Type: stepType,
		Endpoint: Endpoint{
			URL:          rs.Endpoint.URL,
			Method:       rs.Endpoint.Method,
			Topic:        rs.Endpoint.Topic,
			PartitionKey: rs.Endpoint.PartitionKey,
		},
		Headers:  rs.Endpoint.Headers,
		Body:     rs.Body,
		Success:  success,
		Rollback: rollback,
	}, nil
}

// validateCompensation applies the spec.md section 9 open-question
// resolution: a missing `rollback` key is a no-op (nil Compensation); a
// `rollback` key present but with neither endpoint field populated is a
// malformed definition and a parse error, since it's ambiguous what it
// would compensate with.
func validateCompensation(stepName string, rc *rawCompensation) (*Compensation, error) {
	if rc == nil {
		return nil, nil
	}

	compType := StepType(rc.Type)
	if compType == "" {
		compType = StepTypeAPI
	}

	switch compType {
	case StepTypeAPI:
		if rc.Endpoint.URL == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("step %q: rollback present but empty (api rollback requires url)", stepName)}
		}
		method := rc.Endpoint.Method
		if method == "" {
			method = "POST"
		}
		rc.Endpoint.Method = method
	case StepTypeBus:
		if rc.Endpoint.Topic == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("step %q: rollback present but empty (bus rollback requires topic)", stepName)}
		}
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("step %q: rollback has unknown type %q", stepName, rc.Type)}
	}

	return &Compensation{
		Type: compType,
		Endpoint: Endpoint{
			URL:          rc.Endpoint.URL,
			Method:       rc.Endpoint.Method,
			Topic:        rc.Endpoint.Topic,
			PartitionKey: rc.Endpoint.PartitionKey,
		},
		Headers: rc.Endpoint.Headers,
		Body:    rc.Body,
	}, nil
}
