package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderVerificationTemplate(t *testing.T) {
	data := VerificationData{
		AppName:         "Curator",
		UserName:        "Test User",
		VerificationURL: "https://example.com/verify?token=abc123",
	}

	html, err := renderTemplate(verificationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Curator") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test User") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/verify?token=abc123") {
		t.Error("template should contain verification URL")
	}
}

func TestRenderDecisionTemplateApproved(t *testing.T) {
	data := DecisionData{
		AppName:     "Curator",
		UserName:    "Mara",
		EntityTitle: "Cosmic Drift",
		EntityType:  "SERIES",
		Status:      "APPROVED",
	}

	html, err := renderTemplate(decisionEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Cosmic Drift") {
		t.Error("template should contain entity title")
	}
	if !strings.Contains(html, "approved") {
		t.Error("approved template should mention approval")
	}
	if strings.Contains(html, "Reason:") {
		t.Error("approved template should not show a rejection reason")
	}
}

func TestRenderDecisionTemplateRejected(t *testing.T) {
	data := DecisionData{
		AppName:         "Curator",
		UserName:        "Mara",
		EntityTitle:     "Cosmic Drift",
		EntityType:      "SERIES",
		Status:          "REJECTED",
		RejectionReason: "episode count conflicts with the official site",
	}

	html, err := renderTemplate(decisionEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "not accepted") {
		t.Error("rejected template should mention rejection")
	}
	if !strings.Contains(html, "episode count conflicts with the official site") {
		t.Error("rejected template should contain the reason")
	}
}
