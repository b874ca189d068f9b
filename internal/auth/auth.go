// Package auth signs market-data API requests with the venue's HMAC-SHA256 scheme.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Header names expected by the venue.
const (
	HeaderKey        = "CB-ACCESS-KEY"
	HeaderSign       = "CB-ACCESS-SIGN"
	HeaderTimestamp  = "CB-ACCESS-TIMESTAMP"
	HeaderPassphrase = "CB-ACCESS-PASSPHRASE"
)

// ErrNoCredentials is returned when the credentials file does not exist.
var ErrNoCredentials = errors.New("credentials file not found")

// Credentials holds the API key triple issued by the venue.
type Credentials struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"` // base64 encoded
	Passphrase string `yaml:"passphrase"`

	secret []byte
	now    func() time.Time
}

// LoadCredentials reads a YAML credentials file with api_key, api_secret
// and passphrase keys.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCredentials, path)
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credentials yaml: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewCredentials builds credentials from already loaded values.
func NewCredentials(key, secret, passphrase string) (*Credentials, error) {
	c := &Credentials{APIKey: key, APISecret: secret, Passphrase: passphrase}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Credentials) init() error {
	switch {
	case c.APIKey == "":
		return errors.New("credentials: api_key is required")
	case c.APISecret == "":
		return errors.New("credentials: api_secret is required")
	case c.Passphrase == "":
		return errors.New("credentials: passphrase is required")
	}

	secret, err := base64.StdEncoding.DecodeString(c.APISecret)
	if err != nil {
		return fmt.Errorf("credentials: decode api_secret: %w", err)
	}
	c.secret = secret
	if c.now == nil {
		c.now = time.Now
	}
	return nil
}

// SignRequest returns the authentication headers for a request.
// requestPath includes the query string; body is empty for GETs.
func (c *Credentials) SignRequest(method, requestPath, body string) map[string]string {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	return map[string]string{
		HeaderKey:        c.APIKey,
		HeaderSign:       c.signature(ts, method, requestPath, body),
		HeaderTimestamp:  ts,
		HeaderPassphrase: c.Passphrase,
	}
}

// Apply signs req in place.
func (c *Credentials) Apply(req *http.Request) {
	path := req.URL.EscapedPath()
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}
	for k, v := range c.SignRequest(req.Method, path, "") {
		req.Header.Set(k, v)
	}
}

// Message format: timestamp + METHOD + requestPath + body
func (c *Credentials) signature(ts, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(ts + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
