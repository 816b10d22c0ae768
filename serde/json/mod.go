// Package json implements the context engine for the JSON format. It also
// statically registers the JSON formats of the module so that importing the
// context is enough to serialize any message.
package json

import (
	"encoding/json"

	_ "go.dedis.ch/mela/core/action/json"
	_ "go.dedis.ch/mela/core/sequencer/types/json"
	_ "go.dedis.ch/mela/crypto/ed25519/json"
	"go.dedis.ch/mela/serde"
)

// jsonEngine is a context engine to marshal and unmarshal in JSON format.
//
// - implements serde.ContextEngine
type jsonEngine struct{}

// NewContext returns a JSON context.
func NewContext() serde.Context {
	return serde.NewContext(jsonEngine{})
}

// GetFormat implements serde.ContextEngine. It returns the JSON format name.
func (jsonEngine) GetFormat() serde.Format {
	return serde.FormatJSON
}

// Marshal implements serde.ContextEngine. It returns the data of the message
// marshaled in JSON format.
func (jsonEngine) Marshal(m interface{}) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal implements serde.ContextEngine. It populates the message from the
// JSON data.
func (jsonEngine) Unmarshal(data []byte, m interface{}) error {
	return json.Unmarshal(data, m)
}
