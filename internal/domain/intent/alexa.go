package intent

// AlexaToGeneric maps Alexa built-in intent names onto generic intents.
// It is never mutated after package initialization.
var AlexaToGeneric = map[string]GenericIntent{
	"AMAZON.YesIntent":    Yes,
	"AMAZON.NoIntent":     No,
	"AMAZON.HelpIntent":   Help,
	"AMAZON.CancelIntent": Cancel,
	"AMAZON.StopIntent":   Stop,
}

// GenericToAlexa is the inverse of AlexaToGeneric, used by the schema generator.
var GenericToAlexa map[GenericIntent]string

func init() {
	GenericToAlexa = make(map[GenericIntent]string, len(AlexaToGeneric))
	for name, g := range AlexaToGeneric {
		GenericToAlexa[g] = name
	}
}

// FromAlexaName resolves an Alexa intent name. Built-in names become generic
// intents; every other name is passed through verbatim.
func FromAlexaName(name string) Intent {
	if g, ok := AlexaToGeneric[name]; ok {
		return FromGeneric(g)
	}
	return Named(name)
}

// AlexaName returns the Alexa built-in name for a generic intent.
func AlexaName(g GenericIntent) (string, bool) {
	name, ok := GenericToAlexa[g]
	return name, ok
}
