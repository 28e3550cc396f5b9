// internal/services/export_service.go
package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/assetops/license-inventory/internal/config"
)

// ExportService archives compliance report snapshots to S3.
type ExportService struct {
	s3Client   *s3.S3
	cfg        *config.Config
	compliance *ComplianceService
}

type ExportResult struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	AlertCount int    `json:"alert_count"`
	Size       int    `json:"size"`
}

func NewExportService(cfg *config.Config, compliance *ComplianceService) (*ExportService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &ExportService{cfg: cfg, compliance: compliance}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &ExportService{
		s3Client:   s3.New(sess),
		cfg:        cfg,
		compliance: compliance,
	}, nil
}

// ExportOpenAlerts renders the current open-alert set as CSV and uploads it.
func (s *ExportService) ExportOpenAlerts() (*ExportResult, error) {
	if s == nil || s.s3Client == nil {
		return nil, errors.New("object storage is not configured")
	}

	alerts, err := s.compliance.ListOpenAlerts(nil)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Write([]string{"license_id", "product_name", "type", "severity", "detected_at", "details"})
	for i := range alerts {
		product := ""
		if alerts[i].License != nil {
			product = alerts[i].License.ProductName
		}
		writer.Write([]string{
			alerts[i].LicenseID.String(),
			product,
			string(alerts[i].Type),
			string(alerts[i].Severity),
			alerts[i].DetectedAt.Format(time.RFC3339),
			alerts[i].Details,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to render CSV: %w", err)
	}

	key := fmt.Sprintf("compliance/open-alerts-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AWS.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	return &ExportResult{
		Bucket:     s.cfg.AWS.S3Bucket,
		Key:        key,
		AlertCount: len(alerts),
		Size:       buf.Len(),
	}, nil
}
