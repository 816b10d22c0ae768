package action

import (
	"go.dedis.ch/mela/core/schema"
	"go.dedis.ch/mela/crypto"
	"golang.org/x/xerrors"
)

// Manager is a helper to create signed actions on the submitter side. It
// manages the nonce by itself so that two consecutive actions with the same
// inputs still have distinct digests.
type Manager struct {
	domain      Domain
	signer      crypto.Signer
	nonce       uint64
	hashFactory crypto.HashFactory
}

// NewManager creates a new action manager for the deployment domain.
func NewManager(domain Domain, signer crypto.Signer) *Manager {
	return &Manager{
		domain:      domain,
		signer:      signer,
		hashFactory: crypto.NewSha256Factory(),
	}
}

// Make creates a signed action for the transition name populated with the
// payload.
func (mgr *Manager) Make(name string, payload schema.Payload) (*Action, error) {
	act, err := New(mgr.domain, name, mgr.nonce, payload,
		mgr.signer.GetPublicKey(), WithHashFactory(mgr.hashFactory))
	if err != nil {
		return nil, xerrors.Errorf("failed to create action: %v", err)
	}

	err = act.Sign(mgr.signer)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign: %v", err)
	}

	mgr.nonce++

	return act, nil
}
