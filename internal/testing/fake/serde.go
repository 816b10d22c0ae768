package fake

import (
	"go.dedis.ch/mela/serde"
)

// GoodFormat is the format identifier of a format engine that always
// succeeds.
const GoodFormat = serde.Format("FakeGood")

// BadFormat is the format identifier of a format engine that always fails.
const BadFormat = serde.Format("FakeBad")

// MsgFormat is the format identifier of a format engine that always returns
// a plain fake message.
const MsgFormat = serde.Format("FakeMsg")

// GetFakeFormatValue returns the data produced by the good format engine.
func GetFakeFormatValue() []byte {
	return []byte(`fake format`)
}

// Message is a fake implementation of a message.
//
// - implements serde.Message
type Message struct{}

// Serialize implements serde.Message.
func (m Message) Serialize(serde.Context) ([]byte, error) {
	return []byte(`{}`), nil
}

// Format is a fake format engine returning a configurable message.
//
// - implements serde.FormatEngine
type Format struct {
	err  error
	Msg  serde.Message
	Call *Call
}

// NewBadFormat returns a format engine that always returns an error.
func NewBadFormat() Format {
	return Format{err: GetError()}
}

// Encode implements serde.FormatEngine.
func (f Format) Encode(ctx serde.Context, m serde.Message) ([]byte, error) {
	f.Call.Add(ctx, m)
	return GetFakeFormatValue(), f.err
}

// Decode implements serde.FormatEngine.
func (f Format) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	f.Call.Add(ctx, data)
	return f.Msg, f.err
}

// NewContextWithFormat returns a fake context using the given format
// identifier.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(ContextEngine{format: f})
}
