package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

// Predicates that upstream stages use to record where the deposit's
// staged files live.
const (
	PredicateStagingLocation = "stagingLocation"
	PredicateCleanupLocation = "cleanupLocation"
)

const depositGraphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["depositId", "statements"],
  "properties": {
    "depositId": {"type": "string", "minLength": 1},
    "statements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["subject", "predicate", "object"],
        "properties": {
          "subject": {"type": "string"},
          "predicate": {"type": "string", "minLength": 1},
          "object": {"type": "string"}
        }
      }
    }
  }
}`

var (
	graphSchema     *jsonschema.Schema
	graphSchemaErr  error
	graphSchemaOnce sync.Once
)

// StagingLocation is one staged file recorded against a deposit.
// Role is constants.RoleIngested for files whose content went into
// the repository, or constants.RoleCleanupOnly for support files
// (manifests and the like) that were never ingested.
type StagingLocation struct {
	DepositId string
	URI       string
	Role      string
}

// Statement is a single subject/predicate/object triple from a
// deposit's descriptive graph.
type Statement struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// DepositGraph is the descriptive graph that upstream stages build
// for a deposit. The pipeline only reads the staging and cleanup
// location statements. Everything else belongs to the normalizers.
type DepositGraph struct {
	DepositId  string      `json:"depositId"`
	Statements []Statement `json:"statements"`
}

func compiledGraphSchema() (*jsonschema.Schema, error) {
	graphSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		graphSchemaErr = compiler.AddResource("deposit_graph.json",
			bytes.NewReader([]byte(depositGraphSchema)))
		if graphSchemaErr == nil {
			graphSchema, graphSchemaErr = compiler.Compile("deposit_graph.json")
		}
	})
	return graphSchema, graphSchemaErr
}

// ParseDepositGraph validates data against the deposit graph schema
// and unmarshals it.
func ParseDepositGraph(data []byte) (*DepositGraph, error) {
	schema, err := compiledGraphSchema()
	if err != nil {
		return nil, fmt.Errorf("Cannot compile deposit graph schema: %v", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("Deposit graph is not valid JSON: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("Deposit graph does not match schema: %v", err)
	}
	graph := &DepositGraph{}
	if err := json.Unmarshal(data, graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// LoadDepositGraph reads and validates the graph document at path.
func LoadDepositGraph(path string) (*DepositGraph, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	graph, err := ParseDepositGraph(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return graph, nil
}

// StagingLocations returns the graph's staging and cleanup locations
// in document order. Repeated statements for the same URI and role
// are returned once.
func (graph *DepositGraph) StagingLocations() []StagingLocation {
	locations := make([]StagingLocation, 0)
	seen := make(map[string]bool)
	for _, statement := range graph.Statements {
		role := ""
		switch statement.Predicate {
		case PredicateStagingLocation:
			role = constants.RoleIngested
		case PredicateCleanupLocation:
			role = constants.RoleCleanupOnly
		default:
			continue
		}
		key := role + " " + statement.Object
		if statement.Object == "" || seen[key] {
			continue
		}
		seen[key] = true
		locations = append(locations, StagingLocation{
			DepositId: graph.DepositId,
			URI:       statement.Object,
			Role:      role,
		})
	}
	return locations
}

// DepositGraphReader reads deposit graphs from deposit working
// directories.
type DepositGraphReader struct {
	DepositsDirectory string
}

// StagingLocations returns the staging locations recorded for
// depositId. A deposit whose graph is gone, because an earlier
// cleanup already removed its working directory, has none.
func (reader *DepositGraphReader) StagingLocations(depositId string) ([]StagingLocation, error) {
	path := filepath.Join(reader.DepositsDirectory, depositId, constants.DepositGraphFile)
	graph, err := LoadDepositGraph(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []StagingLocation{}, nil
		}
		return nil, err
	}
	if graph.DepositId != depositId {
		return nil, fmt.Errorf("Deposit graph at %s belongs to deposit %s, not %s",
			path, graph.DepositId, depositId)
	}
	return graph.StagingLocations(), nil
}
