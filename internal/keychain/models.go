package keychain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ServiceRecord is a named service credential stored locally
type ServiceRecord struct {
	Name      string `gorm:"primaryKey"`
	Config    string `gorm:"not null"` // JSON object
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name
func (ServiceRecord) TableName() string { return "services" }

// OrgRecord is a named org configuration stored locally
type OrgRecord struct {
	Name      string `gorm:"primaryKey"`
	Scratch   bool
	IsDefault bool
	Config    string `gorm:"not null"` // JSON object
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name
func (OrgRecord) TableName() string { return "orgs" }

// ServiceConfig is the decoded configuration of a service
type ServiceConfig map[string]interface{}

// Get returns a string attribute or "" when missing
func (c ServiceConfig) Get(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// OrgConfig is a decoded org configuration
type OrgConfig struct {
	Name    string
	Scratch bool
	Default bool
	Config  map[string]interface{}
}

// SiteService is the keychain service name holding the MetaCI site
const SiteService = "metaci"

// Site is the credential record for the connected MetaCI site
type Site struct {
	URL     string `json:"url"`
	Token   string `json:"token"`
	AppName string `json:"app_name,omitempty"`
}

// SiteFromConfig decodes a Site from its service config
func SiteFromConfig(c ServiceConfig) *Site {
	return &Site{
		URL:     c.Get("url"),
		Token:   c.Get("token"),
		AppName: c.Get("app_name"),
	}
}

// Config encodes the site as a service config
func (s *Site) Config() ServiceConfig {
	c := ServiceConfig{
		"url":   s.URL,
		"token": s.Token,
	}
	if s.AppName != "" {
		c["app_name"] = s.AppName
	}
	return c
}

func encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(b), nil
}

func decode(s string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return out, nil
}
