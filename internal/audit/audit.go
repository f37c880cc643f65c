// Package audit keeps raw provider responses that could not be understood, one JSON
// file per response, so parse failures can be diagnosed after the fact.
package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Auditor struct {
	AuditDir string
}

func NewAuditor(auditDir string) *Auditor {
	return &Auditor{
		AuditDir: auditDir,
	}
}

// ResponseRecord is a provider response kept for diagnosis.
type ResponseRecord struct {
	Operation  string    `json:"operation"`
	AccountID  int       `json:"account_id"`
	URI        string    `json:"uri"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error"`
	Body       string    `json:"body"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordResponse saves a response that failed to parse and returns the audit file name.
func (a *Auditor) RecordResponse(operation string, accountID int, uri string, status int, body []byte, cause error) (string, error) {
	record := ResponseRecord{
		Operation:  operation,
		AccountID:  accountID,
		URI:        uri,
		StatusCode: status,
		Body:       string(body),
		RecordedAt: time.Now().UTC(),
	}
	if cause != nil {
		record.Error = cause.Error()
	}
	return a.SaveJSON(record)
}

// SaveJSON saves the provided data as JSON to a file with UUID4 filename
func (a *Auditor) SaveJSON(data any) (string, error) {
	if err := a.ensureAuditDir(); err != nil {
		return "", fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	filename := fmt.Sprintf("%s.json", uuid.New().String())
	path := filepath.Join(a.AuditDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal data to JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	log.Printf("[AUDIT] saved %s", path)
	return filename, nil
}

// DeleteOldRecords removes audit files last modified before now minus retention.
func (a *Auditor) DeleteOldRecords(retention time.Duration) (int64, error) {
	entries, err := os.ReadDir(a.AuditDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list audit directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	var deleted int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(a.AuditDir, entry.Name())); err != nil {
				return deleted, fmt.Errorf("failed to remove audit file: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// ensureAuditDir creates the audit directory if it doesn't exist
func (a *Auditor) ensureAuditDir() error {
	if _, err := os.Stat(a.AuditDir); os.IsNotExist(err) {
		if err := os.MkdirAll(a.AuditDir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return nil
}
