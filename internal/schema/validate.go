// Package schema validates Advertisement payloads and RPC arguments against
// their declared JSON-Schema, grounded on the teacher's
// validatePayloadJSONAgainstSchema (registry/service.go): compile the schema
// document with santhosh-tekuri/jsonschema and validate the decoded payload
// against it, surfacing any violation as a SchemaViolation.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/genesis-run/genesis/internal/generrors"
)

// MaxAdvertisementPayloadBytes is the wire limit on Advertisement.payload
// from spec.md §6 (string(≤8192)).
const MaxAdvertisementPayloadBytes = 8192

// MaxRPCArgumentsBytes is the wire limit on the RPC envelope's arguments
// field from spec.md §6 (string(≤65536)).
const MaxRPCArgumentsBytes = 65536

// ValidateSize enforces the wire size invariant from spec.md §8 ("Boundary
// behaviors: Advertisement payload at max size ⇒ accepted; one byte over ⇒
// SchemaViolation").
func ValidateSize(payload []byte, max int) error {
	if len(payload) > max {
		return generrors.Errorf(generrors.KindSchemaViolation, "payload of %d bytes exceeds limit of %d bytes", len(payload), max)
	}
	return nil
}

// ValidateAgainstSchema validates payloadJSON against the JSON-Schema
// document schemaJSON. An empty schema is treated as "no constraint", as in
// the teacher's implementation. A validation failure is returned as a
// *generrors.Error of KindSchemaViolation.
func ValidateAgainstSchema(payloadJSON, schemaJSON []byte) error {
	if len(schemaJSON) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, fmt.Sprintf("unmarshal schema: %v", err), err)
	}

	var payloadDoc any
	if err := json.Unmarshal(payloadJSON, &payloadDoc); err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, fmt.Sprintf("unmarshal payload: %v", err), err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, fmt.Sprintf("add schema resource: %v", err), err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, fmt.Sprintf("compile schema: %v", err), err)
	}

	if err := compiled.Validate(payloadDoc); err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, err.Error(), err)
	}
	return nil
}
