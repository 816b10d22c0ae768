// Package fake provides fake implementations for interfaces commonly used in
// the repository. The implementations offer configuration to return errors
// when it is needed by the unit test and it is also possible to record the
// calls of an object in some cases.
package fake

import (
	"encoding/json"
	"hash"

	"go.dedis.ch/mela/crypto"
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

// fakeError is an error type that can be registered as an expected error to
// make assertions in the unit tests.
type fakeError struct{}

func (e fakeError) Error() string {
	return "fake error"
}

// GetError returns the expected error of the fakes.
func GetError() error {
	return fakeError{}
}

// Err appends the fake error message to the prefix.
func Err(prefix string) string {
	return prefix + ": fake error"
}

// Call is a tool to keep track of a function calls.
type Call struct {
	calls [][]interface{}
}

// NewCall returns a new empty call monitor.
func NewCall() *Call {
	return &Call{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	if c == nil {
		return nil
	}

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	if c == nil {
		return 0
	}

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	if c == nil {
		return
	}

	c.calls = append(c.calls, args)
}

// Counter is a helper to delay errors or actions. It can be nil without
// panicking.
type Counter struct {
	Value int
}

// NewCounter returns a new counter set to the given value.
func NewCounter(value int) *Counter {
	return &Counter{Value: value}
}

// Done returns true when the counter reached zero.
func (c *Counter) Done() bool {
	return c == nil || c.Value <= 0
}

// Decrease decrements the counter.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Value--
}

// Signature is a fake implementation of the signature.
//
// - implements crypto.Signature
type Signature struct {
	crypto.Signature
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Signature) MarshalBinary() ([]byte, error) {
	return []byte{0xfe}, nil
}

// Serialize implements serde.Message.
func (s Signature) Serialize(serde.Context) ([]byte, error) {
	return []byte(`{}`), nil
}

// Equal implements crypto.Signature.
func (s Signature) Equal(other crypto.Signature) bool {
	_, ok := other.(Signature)
	return ok
}

// PublicKey is a fake implementation of a public key.
//
// - implements crypto.PublicKey
type PublicKey struct {
	crypto.PublicKey

	err       error
	verifyErr error
}

// NewBadPublicKey returns a public key that returns errors.
func NewBadPublicKey() PublicKey {
	return PublicKey{err: GetError(), verifyErr: GetError()}
}

// NewInvalidPublicKey returns a public key that fails to verify signatures.
func NewInvalidPublicKey() PublicKey {
	return PublicKey{verifyErr: GetError()}
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify([]byte, crypto.Signature) error {
	return pk.verifyErr
}

// Equal implements crypto.PublicKey.
func (pk PublicKey) Equal(other crypto.PublicKey) bool {
	_, ok := other.(PublicKey)
	return ok
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return []byte("PK"), pk.err
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte("PK"), pk.err
}

// Serialize implements serde.Message.
func (pk PublicKey) Serialize(serde.Context) ([]byte, error) {
	return []byte(`{}`), pk.err
}

// String implements fmt.Stringer.
func (pk PublicKey) String() string {
	return "fake.PublicKey"
}

// Signer is a fake implementation of the signer.
//
// - implements crypto.Signer
type Signer struct {
	pubkey       PublicKey
	signatureErr error
}

// NewSigner returns a new fake signer.
func NewSigner() crypto.Signer {
	return Signer{}
}

// NewBadSigner returns a signer that fails to sign.
func NewBadSigner() crypto.Signer {
	return Signer{signatureErr: GetError()}
}

// GetPublicKeyFactory implements crypto.Signer.
func (s Signer) GetPublicKeyFactory() crypto.PublicKeyFactory {
	return PublicKeyFactory{}
}

// GetSignatureFactory implements crypto.Signer.
func (s Signer) GetSignatureFactory() crypto.SignatureFactory {
	return SignatureFactory{}
}

// GetPublicKey implements crypto.Signer.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return s.pubkey
}

// Sign implements crypto.Signer.
func (s Signer) Sign([]byte) (crypto.Signature, error) {
	return Signature{}, s.signatureErr
}

// PublicKeyFactory is a fake implementation of a public key factory.
//
// - implements crypto.PublicKeyFactory
type PublicKeyFactory struct {
	err error
}

// NewBadPublicKeyFactory returns a factory that returns errors.
func NewBadPublicKeyFactory() PublicKeyFactory {
	return PublicKeyFactory{err: GetError()}
}

// Deserialize implements serde.Factory.
func (f PublicKeyFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return PublicKey{}, f.err
}

// PublicKeyOf implements crypto.PublicKeyFactory.
func (f PublicKeyFactory) PublicKeyOf(ctx serde.Context, data []byte) (crypto.PublicKey, error) {
	return PublicKey{}, f.err
}

// SignatureFactory is a fake implementation of a signature factory.
//
// - implements crypto.SignatureFactory
type SignatureFactory struct {
	err error
}

// NewBadSignatureFactory returns a factory that returns errors.
func NewBadSignatureFactory() SignatureFactory {
	return SignatureFactory{err: GetError()}
}

// Deserialize implements serde.Factory.
func (f SignatureFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return Signature{}, f.err
}

// SignatureOf implements crypto.SignatureFactory.
func (f SignatureFactory) SignatureOf(ctx serde.Context, data []byte) (crypto.Signature, error) {
	return Signature{}, f.err
}

// badHash is a hash that fails after a configurable delay.
//
// - implements hash.Hash
type badHash struct {
	hash.Hash

	delay *Counter
}

// NewBadHash returns a hash that returns an error on the first write.
func NewBadHash() hash.Hash {
	return badHash{}
}

// NewBadHashWithDelay returns a hash that returns an error after the given
// amount of writes.
func NewBadHashWithDelay(delay int) hash.Hash {
	return badHash{delay: NewCounter(delay)}
}

// Write implements io.Writer.
func (h badHash) Write(data []byte) (int, error) {
	if h.delay.Done() {
		return 0, GetError()
	}

	h.delay.Decrease()

	return len(data), nil
}

// Sum implements hash.Hash.
func (h badHash) Sum([]byte) []byte {
	return make([]byte, 32)
}

// Size implements hash.Hash.
func (h badHash) Size() int {
	return 32
}

// HashFactory is a fake implementation of a hash factory.
//
// - implements crypto.HashFactory
type HashFactory struct {
	hash hash.Hash
}

// NewHashFactory returns a factory producing the given hash.
func NewHashFactory(h hash.Hash) HashFactory {
	return HashFactory{hash: h}
}

// New implements crypto.HashFactory.
func (f HashFactory) New() hash.Hash {
	return f.hash
}

// BadWriter is a writer that always fails.
//
// - implements io.Writer
type BadWriter struct{}

// Write implements io.Writer.
func (w BadWriter) Write([]byte) (int, error) {
	return 0, GetError()
}

// MessageFactory is a fake message factory that always fails when configured
// to do so.
//
// - implements serde.Factory
type MessageFactory struct {
	err error
}

// NewBadMessageFactory returns a factory that returns errors.
func NewBadMessageFactory() MessageFactory {
	return MessageFactory{err: GetError()}
}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(serde.Context, []byte) (serde.Message, error) {
	if f.err != nil {
		return nil, f.err
	}

	return nil, xerrors.New("fake factory cannot deserialize")
}

// ContextEngine is a fake engine that can fail on purpose.
//
// - implements serde.ContextEngine
type ContextEngine struct {
	format serde.Format
	err    error
}

// NewContext returns a fake context that never fails.
func NewContext() serde.Context {
	return serde.NewContext(ContextEngine{format: GoodFormat})
}

// NewBadContext returns a fake context that always fails.
func NewBadContext() serde.Context {
	return serde.NewContext(ContextEngine{format: BadFormat, err: GetError()})
}

// GetFormat implements serde.ContextEngine.
func (ctx ContextEngine) GetFormat() serde.Format {
	return ctx.format
}

// Marshal implements serde.ContextEngine. It uses the regular JSON encoding
// unless the context is configured to fail.
func (ctx ContextEngine) Marshal(m interface{}) ([]byte, error) {
	if ctx.err != nil {
		return nil, ctx.err
	}

	return json.Marshal(m)
}

// Unmarshal implements serde.ContextEngine. It uses the regular JSON encoding
// unless the context is configured to fail.
func (ctx ContextEngine) Unmarshal(data []byte, m interface{}) error {
	if ctx.err != nil {
		return ctx.err
	}

	return json.Unmarshal(data, m)
}
