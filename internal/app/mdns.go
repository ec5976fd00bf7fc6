package app

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_chizu._tcp"
	mdnsDomain      = "local."
)

// startMDNS advertises the local shell API so companion devices on the LAN
// can find it.
func (a *App) startMDNS(port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	a.stopMDNS()

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "chizu"
	}

	instance := sanitizeMDNSInstance(fmt.Sprintf("Chizu Campus Map (%s)", hostname))
	hostLabel := sanitizeMDNSHost(hostname)
	hostFQDN := hostLabel
	if !strings.Contains(hostFQDN, ".") {
		hostFQDN = hostLabel + ".local"
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, a.mdnsTXT(port, hostFQDN), nil)
	if err != nil {
		return err
	}

	a.mdns = server
	a.logger.Info("mDNS advertisement started", "instance", instance, "port", port)
	return nil
}

func (a *App) stopMDNS() {
	if a.mdns == nil {
		return
	}

	a.mdns.Shutdown()
	a.logger.Info("mDNS advertisement stopped")
	a.mdns = nil
}

// mdnsTXT describes the shell to LAN clients: where its API lives, which
// campus it shows and which backend feeds it.
func (a *App) mdnsTXT(port int, hostFQDN string) []string {
	txt := []string{
		fmt.Sprintf("http_port=%d", port),
		fmt.Sprintf("metrics_port=%d", a.cfg.MetricsPort),
		"path=/api",
		"proto=v1",
		fmt.Sprintf("host=%s", hostFQDN),
		fmt.Sprintf("campus=%.4f,%.4f", a.cfg.Map.CenterLat, a.cfg.Map.CenterLng),
		fmt.Sprintf("zoom=%d", a.cfg.Map.Zoom),
	}
	if u, err := url.Parse(a.cfg.APIBaseURL); err == nil && u.Host != "" {
		txt = append(txt, "backend="+u.Host)
	}
	return txt
}

func sanitizeMDNSInstance(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.NewReplacer("\n", " ", "\r", " ", ".", " ", "_", " ").Replace(cleaned)
	if cleaned == "" {
		cleaned = "Chizu Campus Map"
	}
	return truncateRunes(cleaned, 63)
}

// sanitizeMDNSHost reduces a hostname to a single DNS label: lowercase
// letters, digits and single hyphens, never leading or trailing.
func sanitizeMDNSHost(name string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case r == ' ' || r == '_' || r == '-' || r == '.':
			if b.Len() > 0 && !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}

	cleaned := strings.TrimRight(truncateRunes(b.String(), 63), "-")
	if cleaned == "" {
		cleaned = "chizu"
	}
	return cleaned
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
