package main

import (
	"fmt"

	"infernode/session"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// JobBinding is what the job-binding collaborator supplies for a session: the
// escrowed on-chain job this session bills against and the client identity
// the handshake signature must match.
type JobBinding struct {
	JobID   string
	Claimed common.Address
}

// JobBinder resolves the binding for an incoming handshake.
type JobBinder interface {
	Bind(payload session.HandshakePayload) (*JobBinding, error)
}

// JobTicketClaims are the claims carried by a job ticket: a JWT minted by the
// escrow service when a job is matched on chain.
type JobTicketClaims struct {
	JobID         string `json:"job_id"`
	SessionID     string `json:"session_id"`
	ClientAddress string `json:"client_address"`
	jwt.RegisteredClaims
}

// TicketBinder verifies HS256 job tickets against the shared escrow secret.
type TicketBinder struct {
	secret []byte
}

var _ JobBinder = (*TicketBinder)(nil)

// NewTicketBinder creates a binder with the shared HMAC secret.
func NewTicketBinder(secret string) *TicketBinder {
	return &TicketBinder{secret: []byte(secret)}
}

// Bind validates the ticket signature and expiry, and checks the ticket was
// minted for this exact session id so tickets cannot be replayed across
// sessions.
func (b *TicketBinder) Bind(payload session.HandshakePayload) (*JobBinding, error) {
	if payload.JobTicket == "" {
		return nil, fmt.Errorf("job ticket is required")
	}

	claims := &JobTicketClaims{}
	_, err := jwt.ParseWithClaims(payload.JobTicket, claims, func(t *jwt.Token) (interface{}, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid job ticket: %w", err)
	}

	if claims.SessionID != payload.SessionID {
		return nil, fmt.Errorf("job ticket bound to a different session")
	}
	if !common.IsHexAddress(claims.ClientAddress) {
		return nil, fmt.Errorf("job ticket carries an invalid client address")
	}

	return &JobBinding{
		JobID:   claims.JobID,
		Claimed: common.HexToAddress(claims.ClientAddress),
	}, nil
}

// DevBinder accepts handshakes without tickets by trusting the identity the
// signature itself recovers to. Development only: it authenticates key
// possession, not a job.
type DevBinder struct{}

var _ JobBinder = (*DevBinder)(nil)

func (b *DevBinder) Bind(payload session.HandshakePayload) (*JobBinding, error) {
	env, err := session.ParseHandshakeEnvelope(payload)
	if err != nil {
		return nil, err
	}
	transcript := session.HandshakeTranscript(env.EphemeralPub, env.SessionID)
	claimed, err := session.RecoverSigner(env.Signature, transcript)
	if err != nil {
		return nil, err
	}
	return &JobBinding{JobID: "dev", Claimed: claimed}, nil
}
