package upload

import (
	"errors"
	"testing"
)

func TestNewService_Validation(t *testing.T) {
	valid := ServiceConfig{
		BucketName:      "documents",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://storage.example.com",
	}

	if _, err := NewService(valid); err != nil {
		t.Errorf("valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
	}{
		{"missing bucket", func(c *ServiceConfig) { c.BucketName = "" }},
		{"missing access key", func(c *ServiceConfig) { c.AccessKeyID = "" }},
		{"missing secret", func(c *ServiceConfig) { c.SecretAccessKey = "" }},
		{"missing endpoint", func(c *ServiceConfig) { c.Endpoint = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewService(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		expectError bool
	}{
		{MIMEApplicationPDF, false},
		{MIMEImageJPEG, false},
		{MIMEImagePNG, false},
		{"image/gif", true},
		{"application/zip", true},
		{"text/html", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			err := ValidateContentType(tt.contentType)
			if tt.expectError && !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("ValidateContentType(%q) = %v, want ErrUnsupportedType", tt.contentType, err)
			}
			if !tt.expectError && err != nil {
				t.Errorf("ValidateContentType(%q) = %v", tt.contentType, err)
			}
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		BucketName:      "documents",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://storage.example.com",
		MaxSizeMB:       10,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.ValidateFileSize(5 * 1024 * 1024); err != nil {
		t.Errorf("5MB under a 10MB cap: %v", err)
	}
	if err := svc.ValidateFileSize(10 * 1024 * 1024); err != nil {
		t.Errorf("exactly at the cap: %v", err)
	}
	if err := svc.ValidateFileSize(10*1024*1024 + 1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("over the cap error = %v, want ErrFileTooLarge", err)
	}
	if err := svc.ValidateFileSize(0); err == nil {
		t.Error("zero size accepted")
	}
	if err := svc.ValidateFileSize(-1); err == nil {
		t.Error("negative size accepted")
	}
}

func TestGenerateObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		dossierID string
		fileName  string
		want      string
		wantErr   error
	}{
		{"simple", "dossier-1", "constat.pdf", "dossiers/dossier-1/constat.pdf", nil},
		{"uuid dossier", "3f1c9a2e-0b4d-4e6f-8a7b-1c2d3e4f5a6b", "photo.jpg", "dossiers/3f1c9a2e-0b4d-4e6f-8a7b-1c2d3e4f5a6b/photo.jpg", nil},
		{"path traversal in name", "dossier-1", "../../etc/passwd", "dossiers/dossier-1/....etcpasswd", nil},
		{"slashes stripped from id", "../dossier-1", "a.pdf", "dossiers/dossier-1/a.pdf", nil},
		{"spaces stripped", "dossier-1", "my file.pdf", "dossiers/dossier-1/myfile.pdf", nil},
		{"dot-only name", "dossier-1", "..", "", ErrInvalidFileName},
		{"empty name", "dossier-1", "", "", ErrInvalidFileName},
		{"id with no valid chars", "/../", "a.pdf", "", ErrInvalidDossierID},
		{"empty id", "", "a.pdf", "", ErrInvalidDossierID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateObjectKey(tt.dossierID, tt.fileName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateObjectKey: %v", err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}
