package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultHostTemplate is the root of the hosted sync service; %s receives the host number
const DefaultHostTemplate = "https://sync%s.colsync.net/"

// Service selects which remote endpoint family a request targets
type Service int

const (
	// ServiceSync is the collection sync endpoint family
	ServiceSync Service = iota
	// ServiceMedia is the media sync endpoint family
	ServiceMedia
)

func (s Service) prefix() string {
	if s == ServiceMedia {
		return "msync/"
	}
	return "sync/"
}

// Endpoint names one remote operation
type Endpoint struct {
	Service Service
	Method  string
	HostNum int
}

// Router resolves endpoints to URLs, honouring a custom server when configured
type Router struct {
	custom string
}

// NewRouter creates a router. An empty custom endpoint selects the hosted service.
func NewRouter(customEndpoint string) *Router {
	return &Router{custom: strings.TrimSpace(customEndpoint)}
}

// Custom reports whether a custom endpoint is configured
func (r *Router) Custom() bool {
	return r.custom != ""
}

// Base returns the root URL requests for hostNum are sent to
func (r *Router) Base(hostNum int) (*url.URL, error) {
	if r.custom != "" {
		return parseCustom(r.custom)
	}
	num := ""
	if hostNum > 0 {
		num = strconv.Itoa(hostNum)
	}
	return url.Parse(fmt.Sprintf(DefaultHostTemplate, num))
}

// Resolve returns the full URL of an endpoint
func (r *Router) Resolve(ep Endpoint) (string, error) {
	base, err := r.Base(ep.HostNum)
	if err != nil {
		return "", err
	}
	return base.JoinPath(ep.Service.prefix() + ep.Method).String(), nil
}

// HostAddress returns the host:port used for reachability probes
func (r *Router) HostAddress(hostNum int) (string, error) {
	base, err := r.Base(hostNum)
	if err != nil {
		return "", err
	}
	if base.Port() != "" {
		return base.Host, nil
	}
	port := "443"
	if base.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(base.Hostname(), port), nil
}

func parseCustom(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &URLError{URL: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &URLError{URL: raw, Err: errors.New("scheme must be http or https")}
	}
	if u.Host == "" {
		return nil, &URLError{URL: raw, Err: errors.New("host is required")}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}
