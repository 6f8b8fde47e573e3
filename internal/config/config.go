package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAdminDatabase is the maintenance database used when none is configured.
const DefaultAdminDatabase = "postgres"

const (
	defaultPort            = 5432
	defaultSSLMode         = "disable"
	defaultCatalogDatabase = "dbforge"
	defaultSchema          = "public"
	defaultWorkers         = 4
	defaultProfilesDir     = "configs"
)

// Action classes checked by the permission oracle.
const (
	ActionView   = "view"
	ActionModify = "modify"
	ActionDelete = "delete"
	ActionCreate = "create"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type CatalogConfig struct {
	Database string `yaml:"database"`
}

type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
}

type Config struct {
	Admin                DatabaseConfig      `yaml:"admin"`
	Catalog              CatalogConfig       `yaml:"catalog"`
	OwnerRole            string              `yaml:"owner_role"`
	ProfilesDir          string              `yaml:"profiles_dir"`
	MetadataSchema       string              `yaml:"metadata_schema"`
	IntrospectionWorkers int                 `yaml:"introspection_workers"`
	Logging              LoggingConfig       `yaml:"logging"`
	Permissions          map[string][]string `yaml:"permissions"`
}

func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	c.Admin.ApplyDefaults(DefaultAdminDatabase)

	if strings.TrimSpace(c.Catalog.Database) == "" {
		c.Catalog.Database = defaultCatalogDatabase
	}
	if strings.TrimSpace(c.OwnerRole) == "" {
		c.OwnerRole = c.Admin.Username
	}
	if strings.TrimSpace(c.ProfilesDir) == "" {
		c.ProfilesDir = defaultProfilesDir
	}
	if strings.TrimSpace(c.MetadataSchema) == "" {
		c.MetadataSchema = defaultSchema
	}
	if c.IntrospectionWorkers <= 0 {
		c.IntrospectionWorkers = defaultWorkers
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// ApplyDefaults fills the connection defaults, using database as the
// maintenance database name when none is configured.
func (d *DatabaseConfig) ApplyDefaults(database string) {
	if d.Port == 0 {
		d.Port = defaultPort
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultSSLMode
	}
	if strings.TrimSpace(d.Database) == "" {
		d.Database = database
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Admin.Host) == "" {
		return fmt.Errorf("admin.host is required")
	}
	if strings.TrimSpace(c.Admin.Username) == "" {
		return fmt.Errorf("admin.username is required")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported logging format: %s", c.Logging.Format)
	}
	return nil
}

// ConnectionString returns a lib/pq keyword DSN for the named database on the
// server described by d.
func (d DatabaseConfig) ConnectionString(database string) string {
	if database == "" {
		database = d.Database
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(d.Host),
		d.Port,
		dsnValue(d.Username),
		dsnValue(d.Password),
		dsnValue(database),
		dsnValue(d.SSLMode),
	)
}

// dsnValue quotes a keyword/value DSN value when it holds spaces or quotes.
func dsnValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

// Allowed reports whether actor may perform action. With no permissions block
// configured every action is allowed.
func (c *Config) Allowed(actor, action string) bool {
	if len(c.Permissions) == 0 {
		return true
	}
	for _, granted := range c.Permissions[actor] {
		granted = strings.ToLower(strings.TrimSpace(granted))
		if granted == action || granted == "*" {
			return true
		}
	}
	return false
}
