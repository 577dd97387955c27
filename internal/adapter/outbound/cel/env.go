package cel

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"github.com/webcomputing/assistant-alexa/internal/domain/reply"
)

// NewReplyEnvironment creates the CEL environment reply conditions run in:
//   - variables: intent, generic, entities, language, platform, session_id,
//     session_data, has_session_data, authenticated
//   - functions: glob(pattern, s), entity(entities, name)
func NewReplyEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("intent", cel.StringType),
		cel.Variable("generic", cel.StringType),
		cel.Variable("entities", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("language", cel.StringType),
		cel.Variable("platform", cel.StringType),
		cel.Variable("session_id", cel.StringType),
		cel.Variable("session_data", cel.StringType),
		cel.Variable("has_session_data", cel.BoolType),
		cel.Variable("authenticated", cel.BoolType),

		// glob: shell pattern match, e.g. glob("AMAZON.*", intent)
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p := pattern.Value().(string)
					n := name.Value().(string)
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),

		// entity: entity value by name, "" when absent.
		// Usage: entity(entities, "city") == "berlin"
		cel.Function("entity",
			cel.Overload("entity_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.StringType), cel.StringType},
				cel.StringType,
				cel.BinaryBinding(func(mapVal, keyVal ref.Val) ref.Val {
					m, ok := mapVal.(traits.Mapper)
					if !ok {
						return types.String("")
					}
					if v, found := m.Find(keyVal); found {
						if s, ok := v.Value().(string); ok {
							return types.String(s)
						}
					}
					return types.String("")
				}),
			),
		),
	)
}

// BuildActivation creates a CEL activation map from an EvaluationContext.
func BuildActivation(evalCtx reply.EvaluationContext) map[string]any {
	entities := evalCtx.Entities
	if entities == nil {
		entities = map[string]string{}
	}

	return map[string]any{
		"intent":           evalCtx.Intent,
		"generic":          evalCtx.Generic,
		"entities":         entities,
		"language":         evalCtx.Language,
		"platform":         evalCtx.Platform,
		"session_id":       evalCtx.SessionID,
		"session_data":     evalCtx.SessionData,
		"has_session_data": evalCtx.HasSessionData,
		"authenticated":    evalCtx.Authenticated,
	}
}
