package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodySize = 4096

var (
	buyTicketSchema = jsonschema.MustCompileString("buyTicket.json", `{
		"type": "object",
		"properties": {
			"startNumber": {"type": "integer"}
		},
		"required": ["startNumber"],
		"additionalProperties": false
	}`)
	startRaceSchema = jsonschema.MustCompileString("startRace.json", `{
		"type": "object",
		"properties": {
			"seed": {"type": "integer"}
		},
		"required": ["seed"],
		"additionalProperties": false
	}`)
)

type (
	buyTicketRequest struct {
		StartNumber int `json:"startNumber"`
	}
	startRaceRequest struct {
		Seed int64 `json:"seed"`
	}
)

// decodeBody validates the request body against schema and decodes it into
// target.
func decodeBody(r *http.Request, schema *jsonschema.Schema, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if len(body) > maxBodySize {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
