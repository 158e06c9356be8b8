package service

import (
	"context"

	"github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/agent/signer"
	"github.com/yndnr/ncabridge-go/internal/portal"
)

// Signer produces a CMS signature for base64 data.
type Signer interface {
	Sign(ctx context.Context, data string) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, data string) (string, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, data string) (string, error) {
	return f(ctx, data)
}

// SessionSigner opens a fresh agent connection for every signature and
// releases it afterwards.
type SessionSigner struct {
	Manager *connection.Manager
	Options signer.Options
}

// Sign implements Signer.
func (s *SessionSigner) Sign(ctx context.Context, data string) (string, error) {
	return signer.SignOnce(ctx, s.Manager, s.Options, data)
}

// Portal is the subset of the portal API used by the flows.
type Portal interface {
	Nonce(ctx context.Context) (string, error)
	Check(ctx context.Context, signature, nonce string) (int64, error)
	CreateDocument(ctx context.Context, req portal.CreateDocumentRequest) (int64, error)
	DocumentContent(ctx context.Context, documentID int64) (*portal.DocumentContent, error)
	AddSignature(ctx context.Context, req portal.AddSignRequest) (*portal.AddSignResult, error)
	SearchPartners(ctx context.Context, query string, limit int) ([]portal.Partner, error)
	PendingDocuments(ctx context.Context) ([]portal.DocumentSummary, error)
	SignedDocuments(ctx context.Context) ([]portal.DocumentSummary, error)
}

var _ Portal = (*portal.Client)(nil)
