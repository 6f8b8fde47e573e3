package profiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/config"
)

// DefaultServer is the identifier of the server described by the admin
// section of the main configuration.
const DefaultServer = "default"

var serverIDPattern = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// Server is one database server known to dbforge.
type Server struct {
	ID       string    `json:"id" yaml:"id"`
	Host     string    `json:"host" yaml:"host"`
	Port     int       `json:"port" yaml:"port"`
	Path     string    `json:"path,omitempty" yaml:"path,omitempty"`
	Modified time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// Manager keeps server profiles in a directory. Each file holds the
// connection settings of one server and its base name is the server
// identifier stored on physical database records, so an identifier must keep
// pointing at the same server for as long as records use it.
type Manager struct {
	dir           string
	defaultServer config.DatabaseConfig
}

// NewManager constructs a profile manager. defaultServer answers for
// DefaultServer and for an empty server identifier.
func NewManager(dir string, defaultServer config.DatabaseConfig) *Manager {
	if strings.TrimSpace(dir) == "" {
		dir = "configs"
	}
	return &Manager{dir: dir, defaultServer: defaultServer}
}

// List returns the default server followed by every readable profile, sorted
// by identifier.
func (m *Manager) List() ([]Server, error) {
	servers := []Server{{ID: DefaultServer, Host: m.defaultServer.Host, Port: m.defaultServer.Port}}

	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return servers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile directory: %w", err)
	}

	var found []Server
	for _, entry := range entries {
		if entry.IsDir() || !hasYAMLExt(entry.Name()) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		cfg, err := loadServer(path)
		if err != nil {
			continue
		}
		server := Server{
			ID:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Host: cfg.Host,
			Port: cfg.Port,
			Path: path,
		}
		if info, err := entry.Info(); err == nil {
			server.Modified = info.ModTime()
		}
		found = append(found, server)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })

	return append(servers, found...), nil
}

// Add stores the settings of a new server under id. Existing identifiers are
// never overwritten.
func (m *Manager) Add(id string, cfg config.DatabaseConfig) (Server, error) {
	id = serverIDPattern.ReplaceAllString(strings.TrimSpace(id), "_")
	id = strings.Trim(id, "_")
	switch {
	case id == "":
		return Server{}, apperr.BadRequest("server id is required")
	case id == DefaultServer:
		return Server{}, apperr.NamingConflict("server id %s is reserved", DefaultServer)
	case strings.TrimSpace(cfg.Host) == "":
		return Server{}, apperr.BadRequest("server host is required")
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Server{}, fmt.Errorf("failed to create profile directory: %w", err)
	}
	path := m.path(id)
	if _, err := os.Stat(m.find(id)); err == nil {
		return Server{}, apperr.NamingConflict("server %s already exists", id)
	}

	cfg.ApplyDefaults(config.DefaultAdminDatabase)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return Server{}, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Server{}, fmt.Errorf("failed to write server profile: %w", err)
	}

	return Server{ID: id, Host: cfg.Host, Port: cfg.Port, Path: path, Modified: time.Now()}, nil
}

// Resolve returns the connection settings for a server identifier.
func (m *Manager) Resolve(server string) (config.DatabaseConfig, error) {
	server = strings.TrimSpace(server)
	if server == "" || server == DefaultServer {
		return m.defaultServer, nil
	}

	cfg, err := loadServer(m.find(server))
	if errors.Is(err, fs.ErrNotExist) {
		return config.DatabaseConfig{}, apperr.NotFound("unknown server %s", server)
	}
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("unknown server %s: %w", server, err)
	}
	return cfg, nil
}

// Remove deletes a server profile. The caller is responsible for making sure
// no record still lives on it.
func (m *Manager) Remove(id string) error {
	if id == DefaultServer {
		return apperr.BadRequest("the default server is part of the main configuration")
	}
	err := os.Remove(m.find(id))
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.NotFound("unknown server %s", id)
	}
	return err
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, serverIDPattern.ReplaceAllString(id, "_")+".yaml")
}

// find returns the profile file of id, accepting either YAML extension.
func (m *Manager) find(id string) string {
	path := m.path(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		alt := strings.TrimSuffix(path, ".yaml") + ".yml"
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return path
}

func loadServer(path string) (config.DatabaseConfig, error) {
	var cfg config.DatabaseConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse server profile: %w", err)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return cfg, fmt.Errorf("server profile %s has no host", path)
	}
	cfg.ApplyDefaults(config.DefaultAdminDatabase)
	return cfg, nil
}

func hasYAMLExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
