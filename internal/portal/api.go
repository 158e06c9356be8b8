package portal

import (
	"context"
	"net/url"
	"strconv"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	Title              string  `json:"title,omitempty"`
	FileName           string  `json:"file_name"`
	FileBase64         string  `json:"file_base64"`
	Signature          string  `json:"signature"`
	ParticipantUserIDs []int64 `json:"participant_user_ids"`
}

// DocumentContent is the response of GET /sign/getbase64.
type DocumentContent struct {
	DocumentID int64  `json:"document_id"`
	FileBase64 string `json:"file_base64"`
}

// AddSignRequest is the body of POST /sign/addsign.
type AddSignRequest struct {
	DocumentID int64  `json:"document_id"`
	FileBase64 string `json:"file_base64"`
	Signature  string `json:"signature"`
}

// AddSignResult is the response of POST /sign/addsign.
type AddSignResult struct {
	OK            bool  `json:"ok"`
	UserID        int64 `json:"uid"`
	DocumentID    int64 `json:"document_id"`
	FileBase64Len int   `json:"file_base64_len"`
	SignatureLen  int   `json:"signature_len"`
}

// Partner is a user that can be invited to sign a document.
type Partner struct {
	ID           int64  `json:"id"`
	IIN          string `json:"iin,omitempty"`
	BIN          string `json:"bin,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Organization string `json:"organization,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Party is one participant of a listed document.
type Party struct {
	Role         string `json:"role"`
	Status       string `json:"status"`
	SignedAt     string `json:"signed_at,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Organization string `json:"organization,omitempty"`
	BIN          string `json:"bin,omitempty"`
	IIN          string `json:"iin,omitempty"`
	Email        string `json:"email,omitempty"`
}

// DocumentSummary is one entry of the pending or signed document lists.
type DocumentSummary struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title,omitempty"`
	CreatedAt string   `json:"created_at"`
	Status    string   `json:"status"`
	FilePath  string   `json:"file_path,omitempty"`
	Parties   []Party  `json:"parties"`
	Initiator *Partner `json:"initiator,omitempty"`
}

// Endpoint names used in logs and metrics.
const (
	EndpointNonce     = "nonce"
	EndpointCheck     = "check"
	EndpointCreate    = "documents_create"
	EndpointContent   = "sign_getbase64"
	EndpointAddSign   = "sign_addsign"
	EndpointPartners  = "documents_partners"
	EndpointPending   = "documents_pending"
	EndpointSignedDoc = "documents_signed"
)

// MaxPartnerResults is the largest limit the portal accepts.
const MaxPartnerResults = 50

// Nonce requests a fresh authentication challenge.
func (c *Client) Nonce(ctx context.Context) (string, error) {
	var out struct {
		Nonce string `json:"nonce"`
	}
	resp, err := c.Post(ctx, "/get", nil)
	if err = c.call(EndpointNonce, resp, err, &out); err != nil {
		return "", err
	}
	if out.Nonce == "" {
		return "", domain.ErrRemote.WithDetails("portal returned an empty nonce")
	}
	return out.Nonce, nil
}

// Check submits the signed nonce. On success the portal sets the session
// cookie and Check returns the user ID.
func (c *Client) Check(ctx context.Context, signature, nonce string) (int64, error) {
	body := struct {
		Signature string `json:"signature"`
		Nonce     string `json:"nonce"`
	}{signature, nonce}

	var out struct {
		UserID int64 `json:"user_id"`
	}
	resp, err := c.Post(ctx, "/check", body)
	if err = c.call(EndpointCheck, resp, err, &out); err != nil {
		return 0, err
	}
	return out.UserID, nil
}

// CreateDocument uploads a signed document and returns its ID.
func (c *Client) CreateDocument(ctx context.Context, req CreateDocumentRequest) (int64, error) {
	if req.ParticipantUserIDs == nil {
		req.ParticipantUserIDs = []int64{}
	}

	var out struct {
		DocumentID int64 `json:"document_id"`
	}
	resp, err := c.Post(ctx, "/documents", req)
	if err = c.call(EndpointCreate, resp, err, &out); err != nil {
		return 0, err
	}
	return out.DocumentID, nil
}

// DocumentContent fetches a document's base64 content for co-signing.
func (c *Client) DocumentContent(ctx context.Context, documentID int64) (*DocumentContent, error) {
	q := url.Values{"document_id": {strconv.FormatInt(documentID, 10)}}

	var out DocumentContent
	resp, err := c.Get(ctx, "/sign/getbase64", q)
	if err = c.call(EndpointContent, resp, err, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddSignature submits a co-signature.
func (c *Client) AddSignature(ctx context.Context, req AddSignRequest) (*AddSignResult, error) {
	var out AddSignResult
	resp, err := c.Post(ctx, "/sign/addsign", req)
	if err = c.call(EndpointAddSign, resp, err, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchPartners finds users matching query. The portal requires at
// least two characters and caps limit at MaxPartnerResults.
func (c *Client) SearchPartners(ctx context.Context, query string, limit int) ([]Partner, error) {
	if len([]rune(query)) < 2 {
		return nil, domain.ErrInvalidArgument.WithDetails("partner query needs at least 2 characters")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxPartnerResults {
		limit = MaxPartnerResults
	}

	q := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
	}
	var out struct {
		Results []Partner `json:"results"`
	}
	resp, err := c.Get(ctx, "/documents/partners", q)
	if err = c.call(EndpointPartners, resp, err, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// PendingDocuments lists documents waiting for the user's signature.
func (c *Client) PendingDocuments(ctx context.Context) ([]DocumentSummary, error) {
	return c.listDocuments(ctx, EndpointPending, "/documents/pending")
}

// SignedDocuments lists documents the user has signed.
func (c *Client) SignedDocuments(ctx context.Context) ([]DocumentSummary, error) {
	return c.listDocuments(ctx, EndpointSignedDoc, "/documents/signed")
}

func (c *Client) listDocuments(ctx context.Context, name, path string) ([]DocumentSummary, error) {
	var out struct {
		Documents []DocumentSummary `json:"documents"`
	}
	resp, err := c.Get(ctx, path, nil)
	if err = c.call(name, resp, err, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}
