package connect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a structured logger for connection lifecycle events.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithHTTPClient sets the client used for control-plane config lookups.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.client = c }
}

// WithConnectorWrapper installs a hook applied to every connector before it
// is cached, typically for instrumentation.
func WithConnectorWrapper(wrap func(name string, c Connector) Connector) ManagerOption {
	return func(m *Manager) { m.wrap = wrap }
}

// Manager caches named connectors in memory. Connections it has not seen
// are initialized from the control plane's internal API.
type Manager struct {
	baseURL string
	dataDir string
	client  *http.Client
	logger  *slog.Logger
	wrap    func(string, Connector) Connector

	mu    sync.Mutex
	conns map[string]Connector
}

// NewManager creates a Manager. baseURL is the control plane root; dataDir
// is the local directory holding uploaded-data databases.
func NewManager(baseURL, dataDir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		baseURL: baseURL,
		dataDir: dataDir,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		conns:   make(map[string]Connector),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns a cached connector. The error names the available
// connections when the requested one has not been initialized.
func (m *Manager) Get(name string) (Connector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[name]
	if !ok {
		return nil, fmt.Errorf("connection %q not initialized, available: %v", name, m.namesLocked())
	}
	return c, nil
}

// GetOrInitialize returns the connector for name, fetching its config from
// the control plane and caching it on first use. companyID and mode scope
// the lookup for tenant isolation; sessionToken authenticates it.
func (m *Manager) GetOrInitialize(ctx context.Context, name string, companyID int, sessionToken, mode string) (Connector, error) {
	m.mu.Lock()
	if c, ok := m.conns[name]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	m.logger.Info("initializing connection",
		"connection", name, "company_id", companyID, "mode", mode)

	typ, config, err := m.fetchConfig(ctx, name, companyID, sessionToken, mode)
	if err != nil {
		return nil, err
	}
	return m.InitializeWith(name, typ, config)
}

// InitializeWith builds, validates, and caches a connector from an explicit
// type and config. An existing connector under the same name is replaced.
func (m *Manager) InitializeWith(name, typ string, config map[string]any) (Connector, error) {
	c, err := m.newConnector(name, typ, config)
	if err != nil {
		return nil, err
	}
	if errs := c.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config for connection %q: %v", name, errs)
	}
	if m.wrap != nil {
		c = m.wrap(name, c)
	}

	m.mu.Lock()
	m.conns[name] = c
	m.mu.Unlock()

	m.logger.Info("cached connection", "connection", name, "type", typ)
	return c, nil
}

// NewConnector builds an unvalidated, uncached connector. Used by the test
// endpoint to probe configs that are not saved yet.
func (m *Manager) NewConnector(name, typ string, config map[string]any) (Connector, error) {
	return m.newConnector(name, typ, config)
}

func (m *Manager) newConnector(name, typ string, config map[string]any) (Connector, error) {
	switch typ {
	case "postgresql":
		return NewPostgres(name, config), nil
	// The product stores uploaded-data connections under the duckdb type;
	// both map onto the SQLite connector here.
	case "sqlite", "duckdb":
		return NewSQLite(name, config, m.dataDir), nil
	default:
		return nil, fmt.Errorf("unsupported connection type %q", typ)
	}
}

func (m *Manager) fetchConfig(ctx context.Context, name string, companyID int, sessionToken, mode string) (string, map[string]any, error) {
	url := m.baseURL + "/api/internal/connections/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build config request: %w", err)
	}
	if sessionToken != "" {
		req.Header.Set("x-session-token", sessionToken)
	}
	req.Header.Set("x-company-id", strconv.Itoa(companyID))
	if mode != "" {
		req.Header.Set("x-mode", mode)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch connection config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil, fmt.Errorf("connection %q: %w", name, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch connection config: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read config response: %w", err)
	}
	var payload struct {
		Type   string         `json:"type"`
		Config map[string]any `json:"config"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("decode config response: %w", err)
	}
	return payload.Type, payload.Config, nil
}

// Remove drops a connector from the cache, closing it if present.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	c, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()
	if ok {
		if err := c.Close(); err != nil {
			m.logger.Warn("close connection", "connection", name, "error", err)
		}
	}
}

// List returns the names of all cached connections, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namesLocked()
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes and drops every cached connector.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]Connector)
	m.mu.Unlock()
	for name, c := range conns {
		if err := c.Close(); err != nil {
			m.logger.Warn("close connection", "connection", name, "error", err)
		}
	}
}
