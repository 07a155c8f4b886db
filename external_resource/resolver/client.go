package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// dnsClient implements the Client interface using github.com/miekg/dns
type dnsClient struct {
	config Config
	client *mdns.Client
}

// NewClient creates a resolver client
func NewClient(config Config) Client {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retries == 0 {
		config.Retries = 1
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = systemNameservers()
	}
	servers := make([]string, len(config.Nameservers))
	for i, s := range config.Nameservers {
		servers[i] = withPort(s)
	}
	config.Nameservers = servers

	return &dnsClient{
		config: config,
		client: &mdns.Client{
			Timeout: config.Timeout,
		},
	}
}

// systemNameservers reads resolv.conf, falling back to public resolvers
func systemNameservers() []string {
	conf, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

// withPort appends the default DNS port to a bare host or IP
func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}

// Lookup queries name for recordType
func (c *dnsClient) Lookup(ctx context.Context, name, recordType string) ([]Record, error) {
	qtype, ok := mdns.StringToType[strings.ToUpper(recordType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadType, recordType)
	}

	resp, err := c.query(ctx, name, qtype)
	if err != nil {
		log.Printf("[Resolver] Lookup ERROR name=%s type=%s: %v", name, recordType, err)
		return nil, err
	}

	var records []Record
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != qtype {
			continue
		}
		records = append(records, toRecord(rr))
	}
	return records, nil
}

// query sends the question to each server in turn until one answers
func (c *dnsClient) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for i := 0; i <= c.config.Retries; i++ {
		for _, server := range c.config.Nameservers {
			if err := ctx.Err(); err != nil {
				return nil, classifyNetErr(err)
			}

			resp, _, err := c.client.ExchangeContext(ctx, m, server)
			if err != nil {
				lastErr = classifyNetErr(err)
				continue
			}

			switch resp.Rcode {
			case mdns.RcodeSuccess:
				return resp, nil
			case mdns.RcodeNameError:
				return nil, ErrNotFound
			case mdns.RcodeServerFailure:
				lastErr = ErrServFail
			case mdns.RcodeRefused:
				lastErr = ErrRefused
			default:
				lastErr = fmt.Errorf("%w: unexpected rcode %s", ErrServFail, mdns.RcodeToString[resp.Rcode])
			}
		}
	}

	if lastErr == nil {
		lastErr = ErrUnreachable
	}
	return nil, lastErr
}

// classifyNetErr separates a slow server from one that cannot be reached
func classifyNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func toRecord(rr mdns.RR) Record {
	h := rr.Header()
	rec := Record{
		Type: mdns.TypeToString[h.Rrtype],
		Name: strings.TrimSuffix(h.Name, "."),
		TTL:  int(h.Ttl),
	}

	switch v := rr.(type) {
	case *mdns.TXT:
		// character-strings of one record are joined without separator, RFC 7208 section 3.3
		rec.Value = strings.Join(v.Txt, "")
	case *mdns.MX:
		prio := v.Preference
		rec.Priority = &prio
		rec.Value = v.Mx
		if rec.Value != "." {
			rec.Value = strings.TrimSuffix(rec.Value, ".")
		}
	case *mdns.A:
		rec.Value = v.A.String()
	case *mdns.CNAME:
		rec.Value = strings.TrimSuffix(v.Target, ".")
	default:
		rec.Value = strings.TrimPrefix(rr.String(), h.String())
	}
	return rec
}
