package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFilePathValidator(t *testing.T) {
	v := NewFilePathValidator()
	if v == nil {
		t.Fatal("NewFilePathValidator returned nil")
	}
	if v.MaxPathLength != 4096 {
		t.Errorf("Expected MaxPathLength to be 4096, got %d", v.MaxPathLength)
	}
	if len(v.AllowedBaseDirs) == 0 {
		t.Error("Expected AllowedBaseDirs to be populated with secure defaults")
	}

	if len(NewPermissiveFilePathValidator().AllowedBaseDirs) != 0 {
		t.Error("Expected AllowedBaseDirs to be empty for permissive mode")
	}
}

func TestValidateAndSanitize(t *testing.T) {
	v := NewFilePathValidator()
	home, _ := os.UserHomeDir()

	tests := []struct {
		name        string
		input       string
		expected    string
		shouldError bool
		errorMsg    string
	}{
		{
			name:        "empty path",
			input:       "",
			shouldError: true,
			errorMsg:    "path cannot be empty",
		},
		{
			name:        "path too long",
			input:       strings.Repeat("a", 5000),
			shouldError: true,
			errorMsg:    "path too long",
		},
		{
			name:        "null byte",
			input:       "/tmp/file\x00.db",
			shouldError: true,
			errorMsg:    "null bytes",
		},
		{
			name:        "traversal",
			input:       "~/.fwtl/../.ssh/id_rsa",
			shouldError: true,
			errorMsg:    "traversal",
		},
		{
			name:        "control characters",
			input:       "/tmp/file\x01.db",
			shouldError: true,
			errorMsg:    "control characters",
		},
		{
			name:        "other user's home",
			input:       "~root/.fwtl.db",
			shouldError: true,
			errorMsg:    "invalid tilde",
		},
		{
			name:        "outside allowed directories",
			input:       "/etc/fwtl.db",
			shouldError: true,
			errorMsg:    "not within allowed directories",
		},
		{
			name:     "home expansion",
			input:    "~/.fwtl/index.bleve",
			expected: filepath.Join(home, ".fwtl", "index.bleve"),
		},
		{
			name:     "default database file",
			input:    "~/.fwtl.db",
			expected: filepath.Join(home, ".fwtl.db"),
		},
		{
			name:     "temp dir",
			input:    filepath.Join(os.TempDir(), "fwtl", "test.db"),
			expected: filepath.Join(os.TempDir(), "fwtl", "test.db"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateAndSanitize(tt.input)
			if tt.shouldError {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestValidateBaseDirsSiblingPrefix(t *testing.T) {
	base := t.TempDir()
	v := &FilePathValidator{AllowedBaseDirs: []string{filepath.Join(base, "fwtl")}, MaxPathLength: 4096}

	if _, err := v.ValidateAndSanitize(filepath.Join(base, "fwtl", "a.db")); err != nil {
		t.Errorf("expected path inside base dir to pass: %v", err)
	}
	if _, err := v.ValidateAndSanitize(filepath.Join(base, "fwtl-other", "a.db")); err == nil {
		t.Error("expected sibling directory with shared prefix to be rejected")
	}
}

func TestValidateDirectory(t *testing.T) {
	v := NewPermissiveFilePathValidator()
	dir := filepath.Join(t.TempDir(), "index.bleve")

	got, err := v.ValidateDirectory(dir, false)
	if err != nil {
		t.Fatalf("missing directory without create: %v", err)
	}
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Error("expected directory not to be created")
	}

	if _, err := v.ValidateDirectory(dir, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist: %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := v.ValidateDirectory(file, false); err == nil {
		t.Error("expected a regular file to be rejected as directory")
	}
}

func TestValidateFile(t *testing.T) {
	v := NewPermissiveFilePathValidator()
	dir := t.TempDir()

	if _, err := v.ValidateFile(filepath.Join(dir, "fwtl.db")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := v.ValidateFile(dir); err == nil {
		t.Error("expected directory to be rejected as file")
	}
}

func TestIsPathSafe(t *testing.T) {
	tests := []struct {
		path string
		safe bool
	}{
		{"/home/user/.fwtl.db", true},
		{"~/.fwtl/index..bleve", true},
		{"../etc/passwd", false},
		{"a/..", false},
		{"..\\windows", false},
		{"file\x00", false},
		{strings.Repeat("a", 5000), false},
	}

	for _, tt := range tests {
		if got := IsPathSafe(tt.path); got != tt.safe {
			t.Errorf("IsPathSafe(%q) = %v, want %v", tt.path, got, tt.safe)
		}
	}
}
