package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/portal"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// MinPartnerQuery is the shortest partner search the portal answers.
const MinPartnerQuery = 2

// DocumentService signs documents and submits them to the portal.
type DocumentService struct {
	signer Signer
	portal Portal
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(s Signer, p Portal) *DocumentService {
	return &DocumentService{signer: s, portal: p}
}

// Create signs doc's content and stores it with its participants.
func (s *DocumentService) Create(ctx context.Context, doc *domain.Document) (*domain.SignedDocument, error) {
	if doc == nil {
		return nil, domain.ErrMissingArgument.WithDetails("document is required")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	ctx = logger.WithAttrs(ctx, "file_name", doc.FileName)
	log := logger.L(ctx).With("participants", len(doc.ParticipantIDs))

	content := doc.EncodedContent()
	signature, err := s.signer.Sign(ctx, content)
	if err != nil {
		log.Warn("document signing failed", "error", err)
		return nil, fmt.Errorf("sign document: %w", err)
	}

	id, err := s.portal.CreateDocument(ctx, portal.CreateDocumentRequest{
		Title:              strings.TrimSpace(doc.Title),
		FileName:           doc.FileName,
		FileBase64:         content,
		Signature:          signature,
		ParticipantUserIDs: doc.ParticipantIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	log.Info("document created", "document_id", id)
	return &domain.SignedDocument{DocumentID: id, SignatureBytes: len(signature)}, nil
}

// CoSign adds the current user's signature to an existing document.
func (s *DocumentService) CoSign(ctx context.Context, documentID int64) (*domain.SignedDocument, error) {
	if documentID <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("document id must be positive")
	}

	ctx = logger.WithAttrs(ctx, "document_id", documentID)
	log := logger.L(ctx)

	doc, err := s.portal.DocumentContent(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	if doc.FileBase64 == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("document has no content")
	}

	signature, err := s.signer.Sign(ctx, doc.FileBase64)
	if err != nil {
		log.Warn("co-signing failed", "error", err)
		return nil, fmt.Errorf("sign document: %w", err)
	}

	res, err := s.portal.AddSignature(ctx, portal.AddSignRequest{
		DocumentID: documentID,
		FileBase64: doc.FileBase64,
		Signature:  signature,
	})
	if err != nil {
		return nil, fmt.Errorf("store signature: %w", err)
	}
	if !res.OK {
		return nil, domain.ErrRemote.WithDetails("portal did not accept the signature")
	}

	log.Info("document co-signed", "signature_len", res.SignatureLen)
	return &domain.SignedDocument{DocumentID: documentID, SignatureBytes: len(signature)}, nil
}

// SearchPartners finds users that can be added as participants. Queries
// shorter than MinPartnerQuery return no results without a round trip.
func (s *DocumentService) SearchPartners(ctx context.Context, query string, limit int) ([]portal.Partner, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinPartnerQuery {
		return nil, nil
	}
	if limit <= 0 || limit > portal.MaxPartnerResults {
		limit = portal.MaxPartnerResults
	}
	return s.portal.SearchPartners(ctx, query, limit)
}

// Pending lists documents waiting for the current user's signature.
func (s *DocumentService) Pending(ctx context.Context) ([]portal.DocumentSummary, error) {
	return s.portal.PendingDocuments(ctx)
}

// Signed lists documents the current user has already signed.
func (s *DocumentService) Signed(ctx context.Context) ([]portal.DocumentSummary, error) {
	return s.portal.SignedDocuments(ctx)
}
