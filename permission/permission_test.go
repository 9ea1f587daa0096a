package permission

import (
	"errors"
	"testing"

	"github.com/xraph/bastion/errdefs"
)

func TestValidName(t *testing.T) {
	for _, n := range []string{"document.read", "billing.invoice.export", "a1.b_2"} {
		if !ValidName(n) {
			t.Errorf("%q should be valid", n)
		}
	}
	for _, n := range []string{"", "document", "Document.read", "document.", ".read", "doc read.x"} {
		if ValidName(n) {
			t.Errorf("%q should be invalid", n)
		}
	}
}

func TestValidate(t *testing.T) {
	p := &Permission{Name: "document.read", ResourceType: "document", RiskLevel: RiskLow}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.RiskLevel = "extreme"
	if err := p.Validate(); !errors.Is(err, errdefs.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown risk level, got %v", err)
	}

	p.RiskLevel = RiskHigh
	p.ResourceType = ""
	if err := p.Validate(); !errors.Is(err, errdefs.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing resource type, got %v", err)
	}
}
