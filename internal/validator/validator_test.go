package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckName(t *testing.T) {
	v := New(Limits{})

	tests := []struct {
		name   string
		reason Reason
		ok     bool
	}{
		{name: "statement.pdf", ok: true},
		{name: "STATEMENT.PDF", ok: true},
		{name: "jan 2024 (1).pdf", ok: true},
		{name: "", reason: ReasonMissing},
		{name: "../../etc/passwd.pdf", reason: ReasonFilename},
		{name: "dir/statement.pdf", reason: ReasonFilename},
		{name: `dir\statement.pdf`, reason: ReasonFilename},
		{name: "a..b.pdf", reason: ReasonFilename},
		{name: "payload.exe", reason: ReasonFilename},
		{name: "payload.PHP", reason: ReasonFilename},
		{name: "<SCRIPT>x.pdf", reason: ReasonFilename},
		{name: "JavaScript:x.pdf", reason: ReasonFilename},
		{name: "img onerror=x.pdf", reason: ReasonFilename},
		{name: strings.Repeat("a", 252) + ".pdf", reason: ReasonFilename},
		{name: "statement.txt", reason: ReasonExtension},
		{name: "statement.pdf.zip", reason: ReasonExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CheckName(tt.name)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			rej, ok := IsRejection(err)
			if !ok {
				t.Fatalf("expected rejection, got %v", err)
			}
			if rej.Reason != tt.reason {
				t.Errorf("reason: got %q, want %q", rej.Reason, tt.reason)
			}
		})
	}
}

func TestCheckName_LengthBoundary(t *testing.T) {
	v := New(Limits{})
	name := strings.Repeat("a", 251) + ".pdf" // 255 characters
	if err := v.CheckName(name); err != nil {
		t.Errorf("255-character name rejected: %v", err)
	}
}

func TestValidate(t *testing.T) {
	v := New(Limits{MaxBytes: 64})

	if err := v.Validate([]byte("%PDF-1.7\n..."), "ok.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := v.Validate([]byte("PK\x03\x04zipdata"), "fake.pdf")
	if rej, ok := IsRejection(err); !ok || rej.Reason != ReasonContent {
		t.Errorf("expected content rejection, got %v", err)
	}
	if err.Error() != "Invalid PDF file" {
		t.Errorf("message: got %q", err.Error())
	}

	err = v.Validate([]byte("%PD"), "short.pdf")
	if rej, ok := IsRejection(err); !ok || rej.Reason != ReasonContent {
		t.Errorf("expected content rejection for short file, got %v", err)
	}

	big := append([]byte("%PDF"), make([]byte, 100)...)
	err = v.Validate(big, "big.pdf")
	if rej, ok := IsRejection(err); !ok || rej.Reason != ReasonSize {
		t.Errorf("expected size rejection, got %v", err)
	}
}

func TestCheckArtifact(t *testing.T) {
	dir := t.TempDir()
	v := New(Limits{MaxBytes: 32})

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	if err := v.CheckArtifact(write("good.pdf", []byte("%PDF-1.4"))); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := v.CheckArtifact(write("bad.pdf", []byte("GIF89a")))
	if rej, ok := IsRejection(err); !ok || rej.Reason != ReasonContent {
		t.Errorf("expected content rejection, got %v", err)
	}

	err = v.CheckArtifact(write("empty.pdf", nil))
	if rej, ok := IsRejection(err); !ok || rej.Reason != ReasonContent {
		t.Errorf("expected content rejection for empty file, got %v", err)
	}

	err = v.CheckArtifact(write("huge.pdf", append([]byte("%PDF"), make([]byte, 64)...)))
	if rej, ok := IsRejection(err); !ok || rej.Reason != ReasonSize {
		t.Errorf("expected size rejection, got %v", err)
	}

	err = v.CheckArtifact(filepath.Join(dir, "missing.pdf"))
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if _, ok := IsRejection(err); ok {
		t.Error("missing artifact should be an internal error, not a rejection")
	}
}

func TestCheckPages(t *testing.T) {
	v := New(Limits{})

	if err := v.CheckPages(50); err != nil {
		t.Errorf("50 pages rejected: %v", err)
	}
	err := v.CheckPages(51)
	rej, ok := IsRejection(err)
	if !ok || rej.Reason != ReasonPages {
		t.Fatalf("expected page rejection, got %v", err)
	}
	if rej.Message != "PDF too large. Maximum 50 pages allowed." {
		t.Errorf("message: got %q", rej.Message)
	}
}
