package database

import (
	"context"

	"github.com/kadirbelkuyu/dbforge/internal/config"
)

// ServerResolver maps a server identifier to its connection settings.
type ServerResolver interface {
	Resolve(server string) (config.DatabaseConfig, error)
}

// Connector opens connections scoped to a single request.
type Connector interface {
	// Open connects to a tenant database on server.
	Open(ctx context.Context, server, database string) (*Connection, error)
	// Admin connects to the maintenance database of server.
	Admin(ctx context.Context, server string) (*Connection, error)
}

type serverConnector struct {
	servers ServerResolver
}

func NewConnector(servers ServerResolver) Connector {
	return &serverConnector{servers: servers}
}

func (c *serverConnector) Open(ctx context.Context, server, database string) (*Connection, error) {
	cfg, err := c.servers.Resolve(server)
	if err != nil {
		return nil, err
	}
	return NewConnection(ctx, cfg, server, database)
}

func (c *serverConnector) Admin(ctx context.Context, server string) (*Connection, error) {
	cfg, err := c.servers.Resolve(server)
	if err != nil {
		return nil, err
	}
	return NewConnection(ctx, cfg, server, cfg.Database)
}
