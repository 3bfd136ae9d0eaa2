package util

import (
	"strings"
	"testing"
)

func TestPkToHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "simple string", input: "test"},
		{name: "empty string", input: ""},
		{name: "ssh key format", input: "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PkToHash(tt.input)
			if len(result) != 64 {
				t.Errorf("Expected hash length 64, got %d", len(result))
			}
			// Verify it's consistent
			result2 := PkToHash(tt.input)
			if result != result2 {
				t.Errorf("Hash should be consistent: %s != %s", result, result2)
			}
		})
	}
}

func TestPkToHashDifferentInputs(t *testing.T) {
	hash1 := PkToHash("input1")
	hash2 := PkToHash("input2")

	if hash1 == hash2 {
		t.Error("Different inputs should produce different hashes")
	}
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("Expected non-empty version")
	}
	if strings.ContainsAny(version, " \n") {
		t.Errorf("Version should be trimmed, got '%s'", version)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	result := GetNameAndVersion()
	if !strings.HasPrefix(result, "grayling / ") {
		t.Errorf("Expected 'grayling / <version>', got '%s'", result)
	}
}

func TestRandomString(t *testing.T) {
	for _, length := range []int{10, 20, 32, 64} {
		result := RandomString(length)
		if len(result) != length {
			t.Errorf("Expected length %d, got %d", length, len(result))
		}
	}
}

func TestRandomStringUniqueness(t *testing.T) {
	results := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := RandomString(32)
		if results[s] {
			t.Errorf("RandomString produced duplicate: %s", s)
		}
		results[s] = true
	}
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "newlines replaced",
			input:    "line1\nline2\nline3",
			expected: "line1 line2 line3",
		},
		{
			name:     "html escaped",
			input:    "<script>alert('xss')</script>",
			expected: "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "normal text",
			input:    "Hello World",
			expected: "Hello World",
		},
		{
			name:     "ampersand",
			input:    "Tom & Jerry",
			expected: "Tom &amp; Jerry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeInput(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single mention",
			input:    "hello @alice@remote.example how are you",
			expected: []string{"alice@remote.example"},
		},
		{
			name:     "multiple mentions",
			input:    "@alice@remote.example meet @bob@other.example",
			expected: []string{"alice@remote.example", "bob@other.example"},
		},
		{
			name:     "duplicate mentions collapse",
			input:    "@alice@remote.example and again @Alice@Remote.Example",
			expected: []string{"alice@remote.example"},
		},
		{
			name:     "no mentions",
			input:    "just a plain note",
			expected: []string{},
		},
		{
			name:     "bare at is not a mention",
			input:    "mail me at alice@remote",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractMentions(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d mentions, got %d: %v", len(tt.expected), len(result), result)
			}
			for i, want := range tt.expected {
				if result[i] != want {
					t.Errorf("Mention %d: expected '%s', got '%s'", i, want, result[i])
				}
			}
		})
	}
}

func TestGeneratePemKeypair(t *testing.T) {
	keypair := GeneratePemKeypair()

	if keypair == nil {
		t.Fatal("GeneratePemKeypair returned nil")
	}

	if !strings.Contains(keypair.Private, "BEGIN RSA PRIVATE KEY") {
		t.Error("Private key doesn't have PEM header")
	}
	if !strings.Contains(keypair.Private, "END RSA PRIVATE KEY") {
		t.Error("Private key doesn't have PEM footer")
	}

	if !strings.Contains(keypair.Public, "BEGIN RSA PUBLIC KEY") {
		t.Error("Public key doesn't have PEM header")
	}
	if !strings.Contains(keypair.Public, "END RSA PUBLIC KEY") {
		t.Error("Public key doesn't have PEM footer")
	}
}
