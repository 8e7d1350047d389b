// Package validation checks request bodies against the JSON Schemas embedded
// under schemas/ before they are decoded.
package validation

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/misbot/backend/internal/apperr"
)

// Schema names, one per request body.
const (
	AuthTelegram  = "auth_telegram"
	ProfileUpdate = "profile_update"
	Tap           = "tap"
	ConnectWallet = "connect_wallet"
	Claim         = "claim"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		id := "https://misbot.app/schemas/" + name + ".json"
		schemas[name], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Decode validates body against the named schema and unmarshals it into dst.
// Any failure is INVALID_INPUT.
func (v *Validator) Decode(name string, body []byte, dst any) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, err, "request body is not valid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, err, "invalid request body: %s", describe(err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, err, "invalid request body")
	}
	return nil
}

// describe returns the innermost validation message with its location.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return loc + ": " + ve.Message
}
