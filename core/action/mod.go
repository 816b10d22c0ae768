// Package action is the implementation of the signed action envelope.
//
// An action requests the execution of a named transition with a typed
// payload. Its digest is computed over a domain-separated, structured encoding
// of the envelope so that a signature is only meaningful for one transition of
// one deployment. The nonce makes two otherwise identical actions
// distinguishable and protects against replays of an already applied action.
package action

import (
	"encoding/binary"
	"io"

	"go.dedis.ch/mela/core/schema"
	"go.dedis.ch/mela/crypto"
	"go.dedis.ch/mela/serde"
	"go.dedis.ch/mela/serde/registry"
	"golang.org/x/xerrors"
)

var actionFormats = registry.NewSimpleRegistry()

// RegisterActionFormat registers the engine for the provided format.
func RegisterActionFormat(f serde.Format, e serde.FormatEngine) {
	actionFormats.Register(f, e)
}

// Domain is the set of domain-separation parameters of a deployment. Two
// deployments with different domains produce incompatible signing payloads.
type Domain struct {
	Name    string
	Version string
	Salt    []byte
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the domain parameters.
func (d Domain) Fingerprint(w io.Writer) error {
	for _, chunk := range [][]byte{[]byte(d.Name), []byte(d.Version), d.Salt} {
		buffer := make([]byte, 4)
		binary.LittleEndian.PutUint32(buffer, uint32(len(chunk)))

		_, err := w.Write(buffer)
		if err != nil {
			return xerrors.Errorf("couldn't write length: %v", err)
		}

		_, err = w.Write(chunk)
		if err != nil {
			return xerrors.Errorf("couldn't write chunk: %v", err)
		}
	}

	return nil
}

// Action is a signed request to apply a named transition with a typed
// payload.
//
// - implements serde.Message
type Action struct {
	name    string
	nonce   uint64
	payload schema.Payload
	domain  Domain
	pubkey  crypto.PublicKey
	sig     crypto.Signature
	digest  []byte
}

type template struct {
	Action

	hashFactory crypto.HashFactory
}

// Option is the type of options to create an action.
type Option func(*template)

// WithSignature is an option to set the signature of the action. The
// signature is not verified at construction, this is the job of the
// authenticator.
func WithSignature(sig crypto.Signature) Option {
	return func(tmpl *template) {
		tmpl.sig = sig
	}
}

// WithHashFactory is an option to set a different hash factory when creating
// an action.
func WithHashFactory(f crypto.HashFactory) Option {
	return func(tmpl *template) {
		tmpl.hashFactory = f
	}
}

// New creates a new action for the given transition name and payload. The
// digest covers the domain parameters, the name, the nonce, the payload and
// the identity of the sender.
func New(domain Domain, name string, nonce uint64, payload schema.Payload,
	pk crypto.PublicKey, opts ...Option) (*Action, error) {

	tmpl := template{
		Action: Action{
			name:    name,
			nonce:   nonce,
			payload: payload,
			domain:  domain,
			pubkey:  pk,
		},
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	h := tmpl.hashFactory.New()
	err := tmpl.Fingerprint(h)
	if err != nil {
		return nil, xerrors.Errorf("couldn't fingerprint action: %v", err)
	}

	tmpl.digest = h.Sum(nil)

	return &tmpl.Action, nil
}

// GetID returns the unique identifier of the action, which is its digest.
func (a *Action) GetID() []byte {
	return append([]byte{}, a.digest...)
}

// GetName returns the name of the transition the action refers to.
func (a *Action) GetName() string {
	return a.name
}

// GetNonce returns the nonce of the action.
func (a *Action) GetNonce() uint64 {
	return a.nonce
}

// GetPayload returns the typed payload of the action.
func (a *Action) GetPayload() schema.Payload {
	return a.payload
}

// GetIdentity returns the claimed sender of the action.
func (a *Action) GetIdentity() crypto.PublicKey {
	return a.pubkey
}

// GetSignature returns the signature of the action, or nil if it has not been
// signed yet.
func (a *Action) GetSignature() crypto.Signature {
	return a.sig
}

// Sign signs the digest of the action and stores the signature.
func (a *Action) Sign(signer crypto.Signer) error {
	if len(a.digest) == 0 {
		return xerrors.New("missing digest in action")
	}

	if !signer.GetPublicKey().Equal(a.pubkey) {
		return xerrors.New("mismatch signer and identity")
	}

	sig, err := signer.Sign(a.digest)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	a.sig = sig

	return nil
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the envelope, starting with the domain parameters.
// Every variable-length element is length-prefixed so that the encoding is
// injective and a digest identifies exactly one envelope.
func (a *Action) Fingerprint(w io.Writer) error {
	err := a.domain.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't write domain: %v", err)
	}

	buffer := make([]byte, 4)
	binary.LittleEndian.PutUint32(buffer, uint32(len(a.name)))

	_, err = w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write name length: %v", err)
	}

	_, err = w.Write([]byte(a.name))
	if err != nil {
		return xerrors.Errorf("couldn't write name: %v", err)
	}

	buffer = make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, a.nonce)

	_, err = w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write nonce: %v", err)
	}

	err = a.payload.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't write payload: %v", err)
	}

	buffer, err = a.pubkey.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	_, err = w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write public key: %v", err)
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// action.
func (a *Action) Serialize(ctx serde.Context) ([]byte, error) {
	format := actionFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, a)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode: %v", err)
	}

	return data, nil
}

// PublicKeyFac is the context key of the public key factory.
type PublicKeyFac struct{}

// SignatureFac is the context key of the signature factory.
type SignatureFac struct{}

// Factory is a factory to deserialize actions.
//
// - implements serde.Factory
type Factory struct {
	domain    Domain
	pubkeyFac crypto.PublicKeyFactory
	sigFac    crypto.SignatureFactory
}

// NewFactory returns a new factory for the given deployment domain.
func NewFactory(domain Domain, pkFac crypto.PublicKeyFactory, sigFac crypto.SignatureFactory) Factory {
	return Factory{
		domain:    domain,
		pubkeyFac: pkFac,
		sigFac:    sigFac,
	}
}

// GetDomain returns the deployment domain of the factory.
func (f Factory) GetDomain() Domain {
	return f.domain
}

// Deserialize implements serde.Factory. It populates the action from the data
// if appropriate, otherwise it returns an error.
func (f Factory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.ActionOf(ctx, data)
}

// ActionOf populates the action from the data if appropriate, otherwise it
// returns an error.
func (f Factory) ActionOf(ctx serde.Context, data []byte) (*Action, error) {
	format := actionFormats.Get(ctx.GetFormat())

	ctx = serde.WithFactory(ctx, PublicKeyFac{}, f.pubkeyFac)
	ctx = serde.WithFactory(ctx, SignatureFac{}, f.sigFac)
	ctx = WithDomain(ctx, f.domain)

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	act, ok := msg.(*Action)
	if !ok {
		return nil, xerrors.Errorf("invalid action of type '%T'", msg)
	}

	return act, nil
}

// DomainKey is the context key of the deployment domain.
type DomainKey struct{}

// WithDomain returns a context holding the deployment domain.
func WithDomain(ctx serde.Context, domain Domain) serde.Context {
	return serde.WithFactory(ctx, DomainKey{}, domainFactory{domain: domain})
}

// domainFactory carries the deployment domain through a serialization
// context.
//
// - implements serde.Factory
type domainFactory struct {
	domain Domain
}

func (f domainFactory) Deserialize(serde.Context, []byte) (serde.Message, error) {
	return nil, xerrors.New("domain factory does not deserialize")
}

// GetDomain returns the domain carried by the factory.
func (f domainFactory) GetDomain() Domain {
	return f.domain
}

// DomainOf returns the deployment domain stored in the context, or an error
// if there is none.
func DomainOf(ctx serde.Context) (Domain, error) {
	factory, ok := ctx.GetFactory(DomainKey{}).(domainFactory)
	if !ok {
		return Domain{}, xerrors.New("missing domain in context")
	}

	return factory.domain, nil
}
