package vbms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/models"
	"go.uber.org/zap"
)

// Config holds VBMS client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client establishes end product claims in VBMS over HTTP. It
// implements external.ClaimEstablisher.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new VBMS client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// EstablishClaim creates the downstream claim for a completing intake.
func (c *Client) EstablishClaim(ctx context.Context, intake *models.Intake) error {
	payload := struct {
		IntakeID          int64           `json:"intake_id"`
		FormType          models.FormType `json:"form_type"`
		VeteranFileNumber string          `json:"veteran_file_number"`
	}{
		IntakeID:          intake.ID,
		FormType:          intake.Type,
		VeteranFileNumber: intake.VeteranFileNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal claim payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build VBMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("VBMS request failed", zap.Int64("intake_id", intake.ID), zap.Error(err))
		return fmt.Errorf("VBMS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("claim establishment rejected with status %d", resp.StatusCode)
	}

	c.logger.Info("Claim established",
		zap.Int64("intake_id", intake.ID),
		zap.String("form_type", string(intake.Type)))
	return nil
}

var _ external.ClaimEstablisher = (*Client)(nil)
