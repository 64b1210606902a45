// Package llmrequest reads the provider-neutral parts of an agent model
// request: the system instruction and the declared function tools.
package llmrequest

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// SystemText joins the text parts of the request's system instruction.
func SystemText(req *model.LLMRequest) string {
	if req == nil || req.Config == nil || req.Config.SystemInstruction == nil {
		return ""
	}
	var texts []string
	for _, part := range req.Config.SystemInstruction.Parts {
		if part != nil && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Declarations returns the function declarations the request exposes, from
// the generate config and from tools that describe themselves. Names are
// unique; the config wins.
func Declarations(req *model.LLMRequest) []*genai.FunctionDeclaration {
	if req == nil {
		return nil
	}

	seen := map[string]bool{}
	var decls []*genai.FunctionDeclaration
	add := func(d *genai.FunctionDeclaration) {
		if d == nil || d.Name == "" || seen[d.Name] {
			return
		}
		seen[d.Name] = true
		decls = append(decls, d)
	}

	if req.Config != nil {
		for _, t := range req.Config.Tools {
			if t == nil {
				continue
			}
			for _, d := range t.FunctionDeclarations {
				add(d)
			}
		}
	}

	type declarer interface {
		Declaration() *genai.FunctionDeclaration
	}
	for _, t := range req.Tools {
		if d, ok := t.(declarer); ok {
			add(d.Declaration())
		}
	}
	return decls
}

// Parameters returns decl's parameter schema as a JSON schema object. A
// declaration without parameters yields an empty object schema.
func Parameters(decl *genai.FunctionDeclaration) (map[string]any, error) {
	var (
		schema map[string]any
		err    error
	)
	switch {
	case decl.ParametersJsonSchema != nil:
		schema, err = toMap(decl.ParametersJsonSchema)
	case decl.Parameters != nil:
		schema, err = toMap(decl.Parameters)
		lowerTypes(schema)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid parameters for tool %s: %w", decl.Name, err)
	}

	if schema == nil {
		schema = map[string]any{}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema, nil
}

func toMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// lowerTypes rewrites genai's upper-case type names ("OBJECT") to JSON
// schema's lower-case ones throughout schema.
func lowerTypes(v any) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if s, ok := child.(string); ok && k == "type" {
				node[k] = strings.ToLower(s)
				continue
			}
			lowerTypes(child)
		}
	case []any:
		for _, child := range node {
			lowerTypes(child)
		}
	}
}
