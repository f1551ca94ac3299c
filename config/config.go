package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Debug bool   `toml:"debug"`
}

type MailConfig struct {
	Folder      string `toml:"folder"`
	MaxFileSize int64  `toml:"max_file_size"` // per-file parse cap in bytes
}

type DownloadConfig struct {
	MaxPayloadSize int64 `toml:"max_payload_size"` // total export cap in bytes
}

type PaginationConfig struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

type AccountConfig struct {
	Username       string `toml:"username"`
	Password       string `toml:"password"`        // plaintext compare when no hash set
	PasswordBcrypt string `toml:"password_bcrypt"` // preferred when present
}

type AuthConfig struct {
	Admin         AccountConfig `toml:"admin"`
	Viewer        AccountConfig `toml:"viewer"`
	JWTSecret     string        `toml:"jwt_secret"`
	ExpiryMinutes int           `toml:"expiry_minutes"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Mail       MailConfig       `toml:"mail"`
	Download   DownloadConfig   `toml:"download"`
	Pagination PaginationConfig `toml:"pagination"`
	Auth       AuthConfig       `toml:"auth"`
	Storage    StorageConfig    `toml:"storage"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Host = "0.0.0.0"
	config.Server.Port = 8000
	config.Mail.Folder = "./emails"
	config.Mail.MaxFileSize = 50 * 1024 * 1024
	config.Download.MaxPayloadSize = 100 * 1024 * 1024
	config.Pagination.DefaultPageSize = 20
	config.Pagination.MaxPageSize = 100
	config.Auth.Admin.Username = "admin"
	config.Auth.Viewer.Username = "viewer"
	config.Auth.ExpiryMinutes = 60
	config.Storage.DataDir = "./data"

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &config, nil
}

// Validate checks the loaded configuration before the server starts
func (c *Config) Validate() error {
	info, err := os.Stat(c.Mail.Folder)
	if err != nil {
		return fmt.Errorf("mail folder %q is not accessible: %w", c.Mail.Folder, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mail folder %q is not a directory", c.Mail.Folder)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.Admin.Password == "" && c.Auth.Admin.PasswordBcrypt == "" {
		return fmt.Errorf("auth.admin needs a password or password_bcrypt")
	}

	if c.Pagination.DefaultPageSize < 1 {
		return fmt.Errorf("pagination.default_page_size must be at least 1")
	}
	if c.Pagination.MaxPageSize < c.Pagination.DefaultPageSize {
		return fmt.Errorf("pagination.max_page_size must be >= default_page_size")
	}

	if c.Mail.MaxFileSize < 1 {
		return fmt.Errorf("mail.max_file_size must be positive")
	}
	if c.Download.MaxPayloadSize < 1 {
		return fmt.Errorf("download.max_payload_size must be positive")
	}

	return nil
}
