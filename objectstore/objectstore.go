// Package objectstore persists generated invoice PDFs to Azure Blob
// Storage and issues short-lived signed URLs for download, so invoice
// binaries are never served from the API process itself.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"chatinvoice/apperror"
)

// SignedURLTTL is how long an issued download URL remains valid.
const SignedURLTTL = 5 * time.Minute

// Config configures the Azure Blob-backed store.
type Config struct {
	AccountName string
	AccountKey  string
	Container   string
}

// Store uploads invoice PDFs and issues signed download URLs.
type Store struct {
	client    *azblob.Client
	sharedKey *service.SharedKeyCredential
	container string
}

// New constructs a Store from cfg.
func New(cfg Config) (*Store, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("objectstore: build credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: build client: %w", err)
	}
	return &Store{client: client, sharedKey: cred, container: cfg.Container}, nil
}

// BlobNameForInvoice derives the deterministic blob name for an invoice
// number, so repeat generation requests overwrite rather than duplicate.
func BlobNameForInvoice(invoiceNumber string) string {
	return fmt.Sprintf("invoice_%s.pdf", invoiceNumber)
}

// UploadInvoicePDF uploads a generated PDF for invoiceNumber, overwriting
// any prior blob of the same name.
func (s *Store) UploadInvoicePDF(ctx context.Context, invoiceNumber string, pdf []byte) error {
	blobName := BlobNameForInvoice(invoiceNumber)
	_, err := s.client.UploadBuffer(ctx, s.container, blobName, pdf, nil)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "upload invoice pdf", err)
	}
	return nil
}

// SignedDownloadURL issues a SAS URL for invoiceNumber's blob, valid for
// SignedURLTTL. Callers proxy through this rather than exposing the
// account credentials to clients.
func (s *Store) SignedDownloadURL(invoiceNumber string) (string, error) {
	blobName := BlobNameForInvoice(invoiceNumber)
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(blobName)

	permissions := sas.BlobPermissions{Read: true}
	expiry := time.Now().UTC().Add(SignedURLTTL)

	url, err := blobClient.GetSASURL(permissions, expiry, nil)
	if err != nil {
		return "", apperror.Wrap(apperror.Internal, "sign invoice download url", err)
	}
	return url, nil
}
