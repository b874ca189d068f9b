package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/ohlcv-gatherer/internal/config"
)

// ApplicationName tags mirror sessions in pg_stat_activity.
const ApplicationName = "ohlcv-gatherer"

// BuildConnString builds the mirror's connection URL. Pool sizes travel as
// pgxpool's pool_max_conns and pool_min_conns parameters.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	if cfg.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		q.Set("pool_min_conns", strconv.Itoa(cfg.MinConns))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
