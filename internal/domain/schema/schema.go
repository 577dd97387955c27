// Package schema holds the intent configuration the generator reads and the
// Alexa interaction model it writes.
package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// IntentsFile is the root of the intents YAML file, keyed by language code.
type IntentsFile struct {
	Languages map[string]LanguageConfig `yaml:"languages"`
}

// LanguageConfig lists the intents and entities of one language.
type LanguageConfig struct {
	Intents []IntentConfig `yaml:"intents"`
	// EntityMapping maps a parameter name to its framework entity type.
	EntityMapping map[string]string `yaml:"entity_mapping"`
	// CustomEntities maps a framework entity type to its values.
	CustomEntities map[string][]EntityValue `yaml:"custom_entities"`
}

// IntentConfig configures one intent. Exactly one of Intent and Generic is set.
type IntentConfig struct {
	Intent     string   `yaml:"intent,omitempty"`
	Generic    string   `yaml:"generic,omitempty"`
	Utterances []string `yaml:"utterances,omitempty"`
	Entities   []string `yaml:"entities,omitempty"`
}

// EntityValue is one value of a custom entity.
type EntityValue struct {
	Value    string   `yaml:"value" json:"value"`
	Synonyms []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

// ParseIntentsFile decodes an intents file and checks that every intent
// names either a raw or a generic intent.
func ParseIntentsFile(r io.Reader) (*IntentsFile, error) {
	var f IntentsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &IntentsFile{}, nil
		}
		return nil, fmt.Errorf("failed to parse intents file: %w", err)
	}

	for lang, cfg := range f.Languages {
		for i, ic := range cfg.Intents {
			if (ic.Intent == "") == (ic.Generic == "") {
				return nil, fmt.Errorf("language %s: intents[%d]: exactly one of intent and generic must be set", lang, i)
			}
		}
	}
	return &f, nil
}

// InteractionModel is the Alexa skill interaction model file.
type InteractionModel struct {
	InteractionModel struct {
		LanguageModel LanguageModel `json:"languageModel"`
	} `json:"interactionModel"`
}

// LanguageModel is the language-specific part of the interaction model.
type LanguageModel struct {
	InvocationName string         `json:"invocationName"`
	Intents        []IntentSchema `json:"intents"`
	Types          []TypeSchema   `json:"types"`
}

// IntentSchema describes one intent of the language model.
type IntentSchema struct {
	Name    string   `json:"name"`
	Slots   []Slot   `json:"slots"`
	Samples []string `json:"samples"`
}

// Slot binds an intent parameter to a slot type.
type Slot struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypeSchema is a custom slot type or an extension of a built-in one.
type TypeSchema struct {
	Name   string      `json:"name"`
	Values []TypeValue `json:"values"`
}

// TypeValue is one value of a slot type.
type TypeValue struct {
	ID   string      `json:"id,omitempty"`
	Name EntityValue `json:"name"`
}
