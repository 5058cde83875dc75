// Package cli implements the mangahub command-line client: account
// management, progress updates and live listening on the TCP/UDP buses.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Session is the saved login state in ~/.mangahub/session.yaml.
type Session struct {
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
	UserID    string `yaml:"user_id"`
	Username  string `yaml:"username"`
}

func sessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".mangahub", "session.yaml"), nil
}

// LoadSession reads the saved session; a missing file yields an empty
// session, not an error.
func LoadSession() (*Session, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &sess, nil
}

// Save writes the session with user-only permissions.
func (s *Session) Save() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the saved session.
func (s *Session) Clear() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// initViper wires flag defaults and env overrides for the client.
func initViper() {
	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("tcp_addr", "127.0.0.1:9000")
	viper.SetDefault("udp_addr", "127.0.0.1:9002")
	viper.BindEnv("server_url", "MANGAHUB_SERVER_URL")
	viper.BindEnv("tcp_addr", "TCP_SERVER_ADDR")
	viper.BindEnv("udp_addr", "UDP_SERVER_ADDR")
}
