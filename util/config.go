package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const Name = "grayling"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host      string
		SshPort   int      `yaml:"sshPort"`
		HttpPort  int      `yaml:"httpPort"`
		SslDomain string   `yaml:"sslDomain"`
		Hubs      []string `yaml:"hubs"`
		Single    bool     `yaml:"single"`
		Closed    bool     `yaml:"closed"`
	}
}

// SiteRoot returns the canonical public base url of this node.
func (c *AppConfig) SiteRoot() string {
	if c.Conf.SslDomain != "" {
		return "https://" + c.Conf.SslDomain
	}
	return fmt.Sprintf("http://%s:%d", c.Conf.Host, c.Conf.HttpPort)
}

// Domain returns the domain name used in acct: identifiers for local people.
func (c *AppConfig) Domain() string {
	if c.Conf.SslDomain != "" {
		return c.Conf.SslDomain
	}
	return c.Conf.Host
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("GRAYLING_HOST")
	envSshPort := os.Getenv("GRAYLING_SSHPORT")
	envHttpPort := os.Getenv("GRAYLING_HTTPPORT")
	envSslDomain := os.Getenv("GRAYLING_SSLDOMAIN")
	envHubs := os.Getenv("GRAYLING_HUBS")
	envSingle := os.Getenv("GRAYLING_SINGLE")
	envClosed := os.Getenv("GRAYLING_CLOSED")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envSshPort != "" {
		v, err := strconv.Atoi(envSshPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.SshPort = v
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envSslDomain != "" {
		c.Conf.SslDomain = envSslDomain
	}

	if envHubs != "" {
		var hubs []string
		for _, h := range strings.Split(envHubs, ",") {
			h = strings.TrimSpace(h)
			if h != "" {
				hubs = append(hubs, h)
			}
		}
		c.Conf.Hubs = hubs
	}

	if envSingle == "true" {
		c.Conf.Single = true
	}

	if envClosed == "true" {
		c.Conf.Closed = true
	}

	return c, nil
}
