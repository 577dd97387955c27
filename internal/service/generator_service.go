package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/webcomputing/assistant-alexa/internal/domain/intent"
	"github.com/webcomputing/assistant-alexa/internal/domain/schema"
)

// DefaultInvocationName replaces invocation names Alexa would reject.
const DefaultInvocationName = "setup-your-invocation-name-in-config"

var (
	invocationNamePattern = regexp.MustCompile(`^[a-z][a-z\s.']*$`)
	placeholderPattern    = regexp.MustCompile(`\{\{(.*?)\}\}`)
)

// ErrMissingSlotType is returned when a parameter's entity type has no
// Alexa slot type.
var ErrMissingSlotType = errors.New("missing alexa slot type")

// GeneratorConfig configures the schema generator.
type GeneratorConfig struct {
	InvocationName string
	// Entities maps framework entity types to Alexa slot types.
	Entities map[string]string
	BuildDir string
}

// GeneratorService builds Alexa interaction models from intent configuration.
type GeneratorService struct {
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGeneratorService creates a GeneratorService.
func NewGeneratorService(cfg GeneratorConfig, logger *slog.Logger) *GeneratorService {
	if logger == nil {
		logger = slog.Default()
	}
	// Config loading folds map keys to lower case, so entity types match
	// case-insensitively.
	entities := make(map[string]string, len(cfg.Entities))
	for entityType, alexaType := range cfg.Entities {
		entities[strings.ToLower(entityType)] = alexaType
	}
	cfg.Entities = entities
	return &GeneratorService{cfg: cfg, logger: logger}
}

// alexaType returns the Alexa slot type configured for a framework entity type.
func (g *GeneratorService) alexaType(entityType string) (string, bool) {
	t, ok := g.cfg.Entities[strings.ToLower(entityType)]
	return t, ok
}

// GenerateFile reads an intents file and writes one schema per language.
func (g *GeneratorService) GenerateFile(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open intents file: %w", err)
	}
	defer func() { _ = f.Close() }()

	file, err := schema.ParseIntentsFile(f)
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, file)
}

// Generate writes <build>/alexa/schema_<lang>.json for every language and
// returns the written paths in language order.
func (g *GeneratorService) Generate(ctx context.Context, file *schema.IntentsFile) ([]string, error) {
	dir := filepath.Join(g.cfg.BuildDir, "alexa")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}

	languages := make([]string, 0, len(file.Languages))
	for lang := range file.Languages {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	paths := make([]string, 0, len(languages))
	for _, lang := range languages {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		model, err := g.BuildModel(lang, file.Languages[lang])
		if err != nil {
			return paths, fmt.Errorf("language %s: %w", lang, err)
		}
		path := filepath.Join(dir, "schema_"+lang+".json")
		if err := writeJSON(path, model); err != nil {
			return paths, err
		}
		g.logger.Info("alexa schema written", "language", lang, "path", path,
			"intents", len(model.InteractionModel.LanguageModel.Intents),
			"types", len(model.InteractionModel.LanguageModel.Types),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

// BuildModel builds the interaction model of one language.
func (g *GeneratorService) BuildModel(lang string, cfg schema.LanguageConfig) (*schema.InteractionModel, error) {
	g.logger.Debug("building alexa schema", "language", lang, "intents", len(cfg.Intents))

	intents, err := g.buildIntents(g.prepareIntents(cfg.Intents), cfg)
	if err != nil {
		return nil, err
	}

	invocationName := g.cfg.InvocationName
	if !invocationNamePattern.MatchString(invocationName) {
		g.logger.Warn("invocation name must start with a letter and can only contain lower case letters, spaces, apostrophes, and periods, omitting",
			"invocation_name", invocationName)
		invocationName = DefaultInvocationName
	}

	model := &schema.InteractionModel{}
	model.InteractionModel.LanguageModel = schema.LanguageModel{
		InvocationName: invocationName,
		Intents:        intents,
		Types:          g.buildTypes(cfg.CustomEntities),
	}
	return model, nil
}

// preparedIntent is an intent with its Alexa name resolved.
type preparedIntent struct {
	name       string
	utterances []string
	entities   []string
}

func (g *GeneratorService) prepareIntents(configs []schema.IntentConfig) []preparedIntent {
	prepared := make([]preparedIntent, 0, len(configs))
	unmapped := 0

	for _, c := range configs {
		if c.Intent != "" {
			if len(c.Utterances) == 0 {
				g.logger.Warn("no utterances specified for intent, omitting", "intent", c.Intent)
				continue
			}
			prepared = append(prepared, preparedIntent{name: c.Intent, utterances: c.Utterances, entities: c.Entities})
			continue
		}

		gi, ok := intent.ParseGeneric(c.Generic)
		if ok && !gi.IsSpeakable() {
			continue
		}
		name, mapped := "", false
		if ok {
			name, mapped = intent.AlexaName(gi)
		}
		if !mapped {
			unmapped++
			continue
		}
		// Built-in intents bring their own samples.
		prepared = append(prepared, preparedIntent{name: name, entities: c.Entities})
	}

	if unmapped > 0 {
		g.logger.Warn("could not convert all intents, omitting them", "missing", unmapped)
	}
	return prepared
}

func (g *GeneratorService) buildIntents(prepared []preparedIntent, cfg schema.LanguageConfig) ([]schema.IntentSchema, error) {
	out := make([]schema.IntentSchema, 0, len(prepared))
	for _, p := range prepared {
		slots, err := g.buildSlots(p.entities, cfg)
		if err != nil {
			return nil, err
		}

		samples := make([]string, 0, len(p.utterances))
		for _, u := range p.utterances {
			s := convertUtterance(u)
			if !slices.Contains(samples, s) {
				samples = append(samples, s)
			}
		}
		out = append(out, schema.IntentSchema{Name: p.name, Slots: slots, Samples: samples})
	}
	return out, nil
}

func (g *GeneratorService) buildSlots(parameters []string, cfg schema.LanguageConfig) ([]schema.Slot, error) {
	slots := make([]schema.Slot, 0, len(parameters))
	for _, name := range parameters {
		entityType := cfg.EntityMapping[name]
		_, custom := cfg.CustomEntities[entityType]
		alexaType, builtIn := g.alexaType(entityType)

		switch {
		case custom && !builtIn:
			slots = append(slots, schema.Slot{Name: name, Type: entityType})
		case builtIn:
			slots = append(slots, schema.Slot{Name: name, Type: alexaType})
		default:
			return nil, fmt.Errorf("%w for parameter %q", ErrMissingSlotType, name)
		}
	}
	return slots, nil
}

// buildTypes returns custom slot types, or extensions of built-in types for
// custom entities mapped in the config.
func (g *GeneratorService) buildTypes(custom map[string][]schema.EntityValue) []schema.TypeSchema {
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)

	types := make([]schema.TypeSchema, 0, len(names))
	for _, name := range names {
		values := make([]schema.TypeValue, 0, len(custom[name]))
		alexaType, builtIn := g.alexaType(name)
		for _, v := range custom[name] {
			if builtIn {
				values = append(values, schema.TypeValue{Name: schema.EntityValue{Value: v.Value}})
			} else {
				values = append(values, schema.TypeValue{Name: v})
			}
		}
		if builtIn {
			name = alexaType
		}
		types = append(types, schema.TypeSchema{Name: name, Values: values})
	}
	return types
}

// convertUtterance turns "{{example|name}}" and "{{name}}" into "{name}".
func convertUtterance(u string) string {
	return placeholderPattern.ReplaceAllStringFunc(u, func(m string) string {
		inner := placeholderPattern.FindStringSubmatch(m)[1]
		parts := strings.Split(inner, "|")
		return "{" + parts[len(parts)-1] + "}"
	})
}

// writeJSON atomically replaces path with the indented JSON encoding of v.
func writeJSON(path string, v any) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file %s: %w", path, err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}
