package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const maxBodyBytes = 1 << 20

const usernameSchema = `{"type": "string", "pattern": "^[A-Za-z0-9_]{5,32}$"}`

var schemaSources = map[string]string{
	"create-bot": `{
		"type": "object",
		"required": ["username", "token"],
		"properties": {
			"username": ` + usernameSchema + `,
			"token": {"type": "string", "minLength": 1},
			"enabled": {"type": "boolean"}
		},
		"additionalProperties": false
	}`,
	"update-bot": `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"username": {"anyOf": [{"const": ""}, ` + usernameSchema + `]},
			"token": {"type": "string"},
			"enabled": {"type": "boolean"}
		},
		"additionalProperties": false
	}`,
	"bot-id": `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1}
		},
		"additionalProperties": false
	}`,
}

// schemas holds the compiled request schemas by name.
type schemas struct {
	compiled map[string]*jsonschema.Schema
}

func mustCompileSchemas() *schemas {
	c := jsonschema.NewCompiler()
	s := &schemas{compiled: make(map[string]*jsonschema.Schema, len(schemaSources))}
	for name, src := range schemaSources {
		var doc any
		if err := json.Unmarshal([]byte(src), &doc); err != nil {
			panic(fmt.Sprintf("botrelay/api: schema %s: %v", name, err))
		}
		url := "botrelay://schema/" + name
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("botrelay/api: schema %s: %v", name, err))
		}
		sch, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("botrelay/api: schema %s: %v", name, err))
		}
		s.compiled[name] = sch
	}
	return s
}

// decode reads the request body, validates it against the named schema
// and unmarshals it into v.
func (s *schemas) decode(r *http.Request, name string, v any) error {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.compiled[name].Validate(doc); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
