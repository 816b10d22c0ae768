package sequencer

import (
	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/crypto"
)

// AuthenticationError is the error returned when the signature of an action
// cannot be verified for its claimed sender.
//
// - implements error
type AuthenticationError struct {
	Reason string
}

// Error implements error. It returns the reason of the failure.
func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// Authenticator verifies that an action has been signed by its claimed
// sender.
//
// The canonical signing payload is rebuilt from the domain parameters of the
// deployment, the transition name, the nonce and the typed payload, so that a
// signature cannot be replayed on another transition or another deployment.
// The authenticator is stateless and safe for concurrent use.
type Authenticator struct {
	domain      action.Domain
	hashFactory crypto.HashFactory
}

// NewAuthenticator creates an authenticator for the deployment domain.
func NewAuthenticator(domain action.Domain) Authenticator {
	return Authenticator{
		domain:      domain,
		hashFactory: crypto.NewSha256Factory(),
	}
}

// Authenticate verifies the signature of the action and returns the verified
// identity of the sender. It never mutates any state.
func (a Authenticator) Authenticate(act *action.Action) (crypto.PublicKey, error) {
	sig := act.GetSignature()
	if sig == nil {
		return nil, &AuthenticationError{Reason: "missing signature"}
	}

	// The digest is rebuilt from the fields of the envelope rather than
	// trusted from the action, so a tampered envelope cannot carry the digest
	// of another message.
	rebuilt, err := action.New(a.domain, act.GetName(), act.GetNonce(),
		act.GetPayload(), act.GetIdentity(), action.WithHashFactory(a.hashFactory))
	if err != nil {
		return nil, &AuthenticationError{Reason: err.Error()}
	}

	err = act.GetIdentity().Verify(rebuilt.GetID(), sig)
	if err != nil {
		return nil, &AuthenticationError{Reason: err.Error()}
	}

	return act.GetIdentity(), nil
}
