package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeJWT      = "jwt"
)

// Attachment backends.
const (
	AttachmentsFS = "fs"
	AttachmentsS3 = "s3"
)

// DefaultUser owns the notes when authentication does not name a user.
const DefaultUser = "local"

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Cache       CacheConfig       `yaml:"cache"`
	Inbox       InboxConfig       `yaml:"inbox"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Attachments.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
		return err
	}
	return c.MCP.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// Timezone names the IANA zone in which check-in days are counted.
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Location resolves Timezone.
func (c *ApplicationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication, every request acts as DefaultUser.
//   - "token": static Bearer token; Token must be non-empty.
//   - "jwt": HS256 Bearer JWT signed with JWTSecret; the "sub" claim is the user.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeJWT)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.Mode == AuthModeJWT && len(c.JWTSecret) < 16 {
		return fmt.Errorf("auth: mode is %q but jwt_secret is shorter than 16 bytes", AuthModeJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeJWT
}

// AttachmentsConfig selects where uploaded images are kept.
type AttachmentsConfig struct {
	Backend   string   `yaml:"backend"`
	Path      string   `yaml:"path"`
	PublicURL string   `yaml:"public_url"`
	S3        S3Config `yaml:"s3"`
}

// S3Config locates an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	// PublicURL prefixes object keys in note content. Defaults to the
	// bucket URL on the endpoint.
	PublicURL string `yaml:"public_url"`
}

// Validate validates the attachments configuration.
func (c *AttachmentsConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = AttachmentsFS
	}
	isS3 := c.Backend == AttachmentsS3
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(AttachmentsFS, AttachmentsS3)),
		validation.Field(&c.Path, validation.When(!isS3, validation.Required)),
		validation.Field(&c.PublicURL, validation.When(!isS3, validation.Required)),
		validation.Field(&c.S3, validation.When(isS3, validation.By(func(any) error {
			return validation.ValidateStruct(&c.S3,
				validation.Field(&c.S3.Endpoint, validation.Required),
				validation.Field(&c.S3.Bucket, validation.Required, validation.Length(3, 63)),
			)
		}))),
	)
}

// CacheConfig configures the optional Redis read cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (c *CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.When(c.Enabled(), validation.Required, validation.Min(time.Second))),
	)
}

// InboxConfig configures the import directory. An empty Path disables it.
type InboxConfig struct {
	Path string `yaml:"path"`
	User string `yaml:"user"`
}

// Enabled reports whether the inbox importer should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	if c.User == "" {
		c.User = DefaultUser
	}
	return nil
}

// MCPConfig configures the stdio MCP server.
type MCPConfig struct {
	// User owns the notes the MCP tools read and write.
	User string `yaml:"user"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	if c.User == "" {
		c.User = DefaultUser
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./hashnote.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Attachments: AttachmentsConfig{
			Backend:   AttachmentsFS,
			Path:      "./attachments",
			PublicURL: "/attachments",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Inbox: InboxConfig{
			User: DefaultUser,
		},
		MCP: MCPConfig{
			User: DefaultUser,
		},
	}
}
