package clients

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerClient wraps the GCP Secret Manager client for reading the
// system master key material
type GCPSecretManagerClient struct {
	client    *secretmanager.Client
	projectID string
	logger    *logrus.Entry
}

// NewGCPSecretManagerClient creates a new GCP Secret Manager client
// Uses Workload Identity when running in GKE
func NewGCPSecretManagerClient(ctx context.Context, projectID string, logger *logrus.Entry) (*GCPSecretManagerClient, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &GCPSecretManagerClient{
		client:    client,
		projectID: projectID,
		logger:    logger,
	}, nil
}

// AccessLatestVersion reads the latest version payload of a secret.
// Never logs the payload.
func (c *GCPSecretManagerClient) AccessLatestVersion(ctx context.Context, secretID string) ([]byte, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.projectID, secretID)

	resp, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		fields := logrus.Fields{
			"secret_id": secretID,
			"operation": "access",
			"status":    "failed",
		}
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			c.logger.WithFields(fields).Error("secret not found in GCP Secret Manager")
		} else {
			c.logger.WithFields(fields).WithError(err).Error("failed to access secret version")
		}
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"secret_id": secretID,
		"operation": "access",
		"status":    "success",
	}).Debug("secret version accessed")

	return resp.Payload.Data, nil
}

// SecretExists checks if a secret exists
func (c *GCPSecretManagerClient) SecretExists(ctx context.Context, secretID string) (bool, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s", c.projectID, secretID)
	_, err := c.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: name})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close closes the client connection
func (c *GCPSecretManagerClient) Close() error {
	return c.client.Close()
}
