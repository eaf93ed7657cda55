package sync

import (
  "fmt"
  "strings"
  gosync "sync"

  jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Structural schema for incoming snapshots. Attribute values are left
// open; their coercion rules live in attributes.go.
const snapshotSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["_format", "units"],
  "properties": {
    "_format": {"type": "string"},
    "meta": {
      "type": "object",
      "properties": {
        "projectName": {"type": "string"},
        "projectSlug": {"type": "string"},
        "baseUrl": {"type": "string"}
      }
    },
    "buildings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    },
    "units": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "buildingId": {"type": "string"},
          "attributes": {"type": "object"},
          "media": {
            "type": "object",
            "properties": {
              "images": {"$ref": "#/$defs/mediaList"},
              "floorPlans": {"$ref": "#/$defs/mediaList"},
              "documents": {"$ref": "#/$defs/mediaList"}
            }
          }
        }
      }
    }
  },
  "$defs": {
    "mediaList": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "url": {"type": "string"},
          "originalFilename": {"type": "string"},
          "title": {"type": "string"},
          "contentHash": {"type": "string"}
        }
      }
    }
  }
}`

var (
  schemaOnce gosync.Once
  schema     *jsonschema.Schema
  schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
  schemaOnce.Do(func() {
    doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snapshotSchemaJSON))
    if err != nil {
      schemaErr = err
      return
    }
    compiler := jsonschema.NewCompiler()
    if err := compiler.AddResource("snapshot.schema.json", doc); err != nil {
      schemaErr = err
      return
    }
    schema, schemaErr = compiler.Compile("snapshot.schema.json")
  })
  return schema, schemaErr
}

func validateSnapshotSchema(instance any) error {
  sch, err := compiledSchema()
  if err != nil {
    return fmt.Errorf("schema compile: %w", err)
  }
  return sch.Validate(instance)
}
