// Package signer implements the Signer/SharedSigner entities of spec.md §3:
// a participant's local description of a signing key, and the subset of it
// shared with other vault participants so they can recognize which branch
// of a policy each signer satisfies.
package signer

import (
	"fmt"
	"strings"

	"github.com/smartvaults/svengine/errs"
)

// Type enumerates the three signing-key form factors (spec.md §3).
type Type int

const (
	TypeSeed Type = iota + 1
	TypeHardware
	TypeAirGap
)

func (t Type) String() string {
	switch t {
	case TypeSeed:
		return "seed"
	case TypeHardware:
		return "hardware"
	case TypeAirGap:
		return "air-gap"
	default:
		return "unknown"
	}
}

// Signer is a local description of a signing key (spec.md §3). Invariant:
// Descriptor is taproot; Descriptor is unique across a participant's
// signers (enforced by the store, see store.SaveSigner).
type Signer struct {
	Name        string
	Description string
	Fingerprint string
	Descriptor  string
	Type        Type
}

func (s *Signer) String() string {
	return fmt.Sprintf("%s(%s)", s.Type, s.Fingerprint)
}

// New validates and constructs a Signer, grounded on
// `coinstr-core/src/signer.rs`'s `Signer::new`: the descriptor must be
// taproot, and a fingerprint is required since it's the value the policy
// tree's leaves key on.
func New(name, description, fingerprint, descriptor string, t Type) (*Signer, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, errs.Validation("signer: fingerprint is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(descriptor), "tr(") {
		return nil, errs.Validation("signer: descriptor must be a taproot (tr(...)) descriptor")
	}
	switch t {
	case TypeSeed, TypeHardware, TypeAirGap:
	default:
		return nil, errs.Validation("signer: unknown signer type")
	}
	return &Signer{
		Name:        name,
		Description: description,
		Fingerprint: fingerprint,
		Descriptor:  descriptor,
		Type:        t,
	}, nil
}

// ToShared strips the Signer down to the fingerprint/descriptor pair that
// is safe to distribute to other vault participants (spec.md §3,
// `coinstr-core/src/signer.rs`'s `Signer::to_shared_signer`).
func (s *Signer) ToShared() *SharedSigner {
	return &SharedSigner{
		Fingerprint: s.Fingerprint,
		Descriptor:  s.Descriptor,
	}
}

// SharedSigner is the subset of a Signer a participant discloses to others
// so they can recognize which policy leaf it satisfies, without learning
// the owner's name/description/type.
type SharedSigner struct {
	Fingerprint string
	Descriptor  string
}

func (s *SharedSigner) String() string {
	return fmt.Sprintf("shared-signer(%s)", s.Fingerprint)
}
