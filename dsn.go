package oracle

import (
	"fmt"
	"strconv"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
)

// DSN is the parsed form of an "oci:" target descriptor:
//
//	oci:dbname=//host:port/service;charset=AL32UTF8;key=value...
//
// dbname also accepts the bare host[:port]/service form and a plain
// service name, which is resolved by the driver.
type DSN struct {
	Host    string
	Port    int
	Service string
	Charset string
	// Options carries every descriptor key other than dbname and
	// charset, passed through to the driver connect URL verbatim.
	Options map[string]string
}

const defaultPort = 1521

// ParseDSN splits an oci: target descriptor into its components.
func ParseDSN(dsn string) (*DSN, error) {
	descriptor := strings.TrimPrefix(dsn, "oci:")
	if descriptor == dsn && strings.Contains(dsn, ":") && !strings.Contains(dsn, "=") {
		return nil, fmt.Errorf("invalid descriptor prefix in %q", dsn)
	}

	d := &DSN{Port: defaultPort, Options: map[string]string{}}
	for _, part := range strings.Split(descriptor, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("malformed descriptor entry %q", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "dbname":
			if err := d.parseDBName(value); err != nil {
				return nil, err
			}
		case "charset":
			d.Charset = value
		default:
			d.Options[key] = value
		}
	}

	if d.Service == "" {
		return nil, fmt.Errorf("descriptor %q carries no dbname", dsn)
	}
	return d, nil
}

func (d *DSN) parseDBName(value string) error {
	value = strings.TrimPrefix(value, "//")
	if value == "" {
		return fmt.Errorf("empty dbname")
	}

	addr, service, found := strings.Cut(value, "/")
	if !found {
		// plain service or TNS alias, resolved by the driver
		d.Service = value
		return nil
	}
	if service == "" {
		return fmt.Errorf("dbname %q carries no service name", value)
	}
	d.Service = service

	host, port, found := strings.Cut(addr, ":")
	d.Host = host
	if found {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 {
			return fmt.Errorf("invalid port in dbname %q", value)
		}
		d.Port = p
	}
	return nil
}

// URL builds the native driver connect URL for the given credentials.
func (d *DSN) URL(user, password string) string {
	options := make(map[string]string, len(d.Options)+1)
	for k, v := range d.Options {
		options[strings.ToUpper(k)] = v
	}
	if d.Charset != "" {
		options["CHARSET"] = d.Charset
	}
	if len(options) == 0 {
		options = nil
	}

	host := d.Host
	if host == "" {
		host = "localhost"
	}
	return go_ora.BuildUrl(host, d.Port, d.Service, user, password, options)
}
