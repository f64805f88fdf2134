package mongopool

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Parse converts a connection-string URI of the form
//
//	scheme://[user:pass@]host1[:port1][,host2[:port2],...]/database[?ssl=true|false]
//
// into a Config. Credentials are percent-decoded independently; a decode
// failure is fatal. Host order and duplicates are preserved — repeating a
// host weights its selection probability at connect time. An empty host
// list is accepted here and rejected by Connect, not by Parse.
//
// All failures wrap ErrInvalidConfig.
func Parse(uri string) (Config, error) {
	cfg, err := parseURI(uri)
	if err != nil {
		return Config{}, configError(err)
	}

	return cfg, nil
}

func parseURI(raw string) (Config, error) {
	cfg := DefaultConfig()

	scheme, rest, found := strings.Cut(raw, "://")
	if !found || scheme == "" {
		return Config{}, ErrMissingScheme
	}

	rest, query, _ := strings.Cut(rest, "?")
	authority, path, _ := strings.Cut(rest, "/")

	credential, hostPart, err := parseAuthority(authority)
	if err != nil {
		return Config{}, err
	}

	cfg.Credential = credential

	hosts, err := parseHostList(hostPart)
	if err != nil {
		return Config{}, err
	}

	cfg.Hosts = hosts

	database, err := parseDatabase(path)
	if err != nil {
		return Config{}, err
	}

	if database != "" {
		cfg.Database = database
	}

	tlsCfg, err := parseQueryOptions(query)
	if err != nil {
		return Config{}, err
	}

	cfg.TLS = tlsCfg

	return cfg, nil
}

// parseAuthority splits the optional user:pass@ prefix from the host part.
// A credential is produced only when both username and password segments are
// present; either alone means no authentication was requested.
func parseAuthority(authority string) (*Credential, string, error) {
	idx := strings.LastIndex(authority, "@")
	if idx < 0 {
		return nil, authority, nil
	}

	userinfo, hostPart := authority[:idx], authority[idx+1:]

	user, pass, hasPassword := strings.Cut(userinfo, ":")
	if user == "" || !hasPassword {
		return nil, hostPart, nil
	}

	username, err := url.PathUnescape(user)
	if err != nil {
		return nil, "", fmt.Errorf("%w: username: %w", ErrInvalidCredential, err)
	}

	password, err := url.PathUnescape(pass)
	if err != nil {
		return nil, "", fmt.Errorf("%w: password: %w", ErrInvalidCredential, err)
	}

	return &Credential{Username: username, Password: password}, hostPart, nil
}

// parseHostList expands the comma-separated host tokens in input order.
// An entirely empty host part yields an empty list (a connect-time failure);
// an empty token inside a non-empty list is a parse error.
func parseHostList(hostPart string) ([]Host, error) {
	if hostPart == "" {
		return nil, nil
	}

	tokens := strings.Split(hostPart, ",")
	hosts := make([]Host, 0, len(tokens))

	for _, token := range tokens {
		host, err := parseHost(token)
		if err != nil {
			return nil, err
		}

		hosts = append(hosts, host)
	}

	return hosts, nil
}

func parseHost(token string) (Host, error) {
	hostname := token
	port := DefaultPort

	if idx := strings.LastIndex(token, ":"); idx >= 0 {
		hostname = token[:idx]

		parsed, err := parsePort(token[idx+1:])
		if err != nil {
			return Host{}, err
		}

		port = parsed
	}

	if hostname == "" {
		return Host{}, ErrEmptyHost
	}

	return Host{Hostname: hostname, Port: port}, nil
}

func parsePort(raw string) (uint16, error) {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
	}

	return uint16(port), nil
}

func parseDatabase(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	database, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}

	return database, nil
}

// parseQueryOptions interprets the query segment. Only the ssl option is
// meaningful: "true" selects server-only TLS with peer verification
// disabled (no certificate material is obtainable from a URI), "false" and
// absence leave security unset, and any other token is fatal. Unknown
// options are ignored.
func parseQueryOptions(query string) (*TLSConfig, error) {
	if query == "" {
		return nil, nil
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	ssl, present := values["ssl"]
	if !present {
		return nil, nil
	}

	switch ssl[len(ssl)-1] {
	case "true":
		return &TLSConfig{VerifyPeer: false}, nil
	case "false":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidSSLOption, ssl[len(ssl)-1])
	}
}
