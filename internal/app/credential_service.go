package app

import (
	"context"
	"fmt"

	"github.com/leekyio/api/pkg/crypto"
	"github.com/leekyio/api/pkg/domain/credential"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
	"github.com/leekyio/api/pkg/validator"
)

// CredentialService stores and serves per-owner provider tokens. Tokens
// are encrypted at rest and never leave this service in plaintext except
// into the scan engine.
type CredentialService struct {
	credentials credential.Repository
	cipher      crypto.Encryptor
	validator   *validator.Validator
	logger      *logger.Logger
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(
	credentials credential.Repository,
	cipher crypto.Encryptor,
	v *validator.Validator,
	log *logger.Logger,
) *CredentialService {
	return &CredentialService{
		credentials: credentials,
		cipher:      cipher,
		validator:   v,
		logger:      log.With("service", "credential"),
	}
}

// SaveCredentialInput represents input for storing a provider token.
type SaveCredentialInput struct {
	Service string `json:"service" validate:"required,service"`
	Token   string `json:"token" validate:"required,min=8,max=512"`
}

// SaveCredential encrypts and stores a provider token, replacing any
// previous token for the same owner and service.
func (s *CredentialService) SaveCredential(ctx context.Context, ownerID shared.ID, input SaveCredentialInput) error {
	if err := s.validator.Validate(input); err != nil {
		return err
	}

	encrypted, err := s.cipher.EncryptString(input.Token)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}

	cred, err := credential.NewCredential(ownerID, input.Service, encrypted)
	if err != nil {
		return err
	}
	if err := s.credentials.Upsert(ctx, cred); err != nil {
		return err
	}

	s.logger.Info("credential stored", "owner_id", ownerID, "service", input.Service)
	return nil
}

// ListServices returns the service names the owner has credentials for.
// Tokens are never exposed through this operation.
func (s *CredentialService) ListServices(ctx context.Context, ownerID shared.ID) ([]string, error) {
	return s.credentials.ListServices(ctx, ownerID)
}

// DeleteCredential deactivates the owner's credential for a service.
// Deleting an absent credential succeeds.
func (s *CredentialService) DeleteCredential(ctx context.Context, ownerID shared.ID, service string) error {
	if err := s.credentials.Deactivate(ctx, ownerID, service); err != nil {
		return err
	}
	s.logger.Info("credential deactivated", "owner_id", ownerID, "service", service)
	return nil
}
