package util

import (
	"os"
	"testing"
)

func TestConfigConstants(t *testing.T) {
	if Name != "grayling" {
		t.Errorf("Expected Name 'grayling', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
  sslDomain: example.com
  hubs:
    - https://hub.example.com/
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}

	if config.Conf.SshPort != 23232 {
		t.Errorf("Expected SshPort 23232, got %d", config.Conf.SshPort)
	}

	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "example.com" {
		t.Errorf("Expected SslDomain 'example.com', got '%s'", config.Conf.SslDomain)
	}

	if len(config.Conf.Hubs) != 1 || config.Conf.Hubs[0] != "https://hub.example.com/" {
		t.Errorf("Expected one hub, got %v", config.Conf.Hubs)
	}
}

func TestReadConfWithEnvOverrides(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
  sslDomain: example.com
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	os.Setenv("GRAYLING_HOST", "192.168.1.1")
	os.Setenv("GRAYLING_SSHPORT", "2222")
	os.Setenv("GRAYLING_HTTPPORT", "8080")
	os.Setenv("GRAYLING_SSLDOMAIN", "test.example.com")
	os.Setenv("GRAYLING_HUBS", "https://hub.one/, https://hub.two/")

	defer func() {
		os.Unsetenv("GRAYLING_HOST")
		os.Unsetenv("GRAYLING_SSHPORT")
		os.Unsetenv("GRAYLING_HTTPPORT")
		os.Unsetenv("GRAYLING_SSLDOMAIN")
		os.Unsetenv("GRAYLING_HUBS")
	}()

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	// Environment variables should override YAML values
	if config.Conf.Host != "192.168.1.1" {
		t.Errorf("Expected Host '192.168.1.1' from env, got '%s'", config.Conf.Host)
	}

	if config.Conf.SshPort != 2222 {
		t.Errorf("Expected SshPort 2222 from env, got %d", config.Conf.SshPort)
	}

	if config.Conf.HttpPort != 8080 {
		t.Errorf("Expected HttpPort 8080 from env, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "test.example.com" {
		t.Errorf("Expected SslDomain 'test.example.com' from env, got '%s'", config.Conf.SslDomain)
	}

	if len(config.Conf.Hubs) != 2 || config.Conf.Hubs[1] != "https://hub.two/" {
		t.Errorf("Expected two hubs from env, got %v", config.Conf.Hubs)
	}
}

func TestReadConfInvalidYaml(t *testing.T) {
	invalidYaml := `
conf:
  host: 127.0.0.1
  sshPort: not_a_number
  invalid yaml structure
`
	err := os.WriteFile("config.yaml", []byte(invalidYaml), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	_, err = ReadConf()
	if err == nil {
		t.Error("Expected error when parsing invalid YAML")
	}
}

func TestSiteRoot(t *testing.T) {
	config := &AppConfig{}
	config.Conf.Host = "localhost"
	config.Conf.HttpPort = 8080

	if got := config.SiteRoot(); got != "http://localhost:8080" {
		t.Errorf("Expected 'http://localhost:8080', got '%s'", got)
	}

	config.Conf.SslDomain = "social.example.com"
	if got := config.SiteRoot(); got != "https://social.example.com" {
		t.Errorf("Expected 'https://social.example.com', got '%s'", got)
	}
}

func TestDomain(t *testing.T) {
	config := &AppConfig{}
	config.Conf.Host = "localhost"

	if got := config.Domain(); got != "localhost" {
		t.Errorf("Expected 'localhost', got '%s'", got)
	}

	config.Conf.SslDomain = "social.example.com"
	if got := config.Domain(); got != "social.example.com" {
		t.Errorf("Expected 'social.example.com', got '%s'", got)
	}
}
