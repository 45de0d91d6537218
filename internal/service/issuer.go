package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"

	"go.uber.org/zap"
)

// CertificateIssuer is the downstream collaborator that renders and delivers
// certificates. The outcome record never depends on it succeeding.
type CertificateIssuer interface {
	Issue(ctx context.Context, cert *model.Certificate) error
}

// HTTPIssuer posts issuance requests to the configured issuer endpoint.
type HTTPIssuer struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPIssuer(endpoint string, timeout time.Duration) *HTTPIssuer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPIssuer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (i *HTTPIssuer) Issue(ctx context.Context, cert *model.Certificate) error {
	if i.Endpoint == "" {
		// No issuer configured; the persisted certificate row is the record.
		logger.Log.Debug("issuer endpoint not configured, skipping delivery",
			zap.Uint("certificateId", cert.ID))
		return nil
	}

	body, err := json.Marshal(cert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.Client.Do(req)
	if err != nil {
		return util.DependencyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return util.DependencyError(fmt.Errorf("issuer responded %d", resp.StatusCode))
	}
	return nil
}
