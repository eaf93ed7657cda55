package media

import (
  "net"
  "net/url"
  "strings"
)

var loopbackNames = map[string]struct{}{
  "localhost": {},
  "0.0.0.0":   {},
  "::1":       {},
}

// IsSafeURL reports whether a media URL may be fetched.
// The host of the configured source system is trusted without resolution;
// everything else must resolve to a public address. This keeps an
// attacker-controlled snapshot from pointing the fetcher at internal
// network resources.
// Args:
//   u: Parsed absolute URL.
//   trustedHost: Hostname of the known source system, may be empty.
// Returns:
//   bool: True when the URL is safe to fetch.
func IsSafeURL(u *url.URL, trustedHost string) bool {
  if u == nil {
    return false
  }

  scheme := strings.ToLower(u.Scheme)
  if scheme != "http" && scheme != "https" {
    return false
  }

  host := strings.ToLower(u.Hostname())
  if host == "" {
    return false
  }

  if trustedHost != "" && host == strings.ToLower(trustedHost) {
    return true
  }

  if _, ok := loopbackNames[host]; ok {
    return false
  }

  ips, err := net.LookupIP(host)
  if err != nil || len(ips) == 0 {
    return false
  }
  for _, ip := range ips {
    if !isPublicIP(ip) {
      return false
    }
  }
  return true
}

func isPublicIP(ip net.IP) bool {
  if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
    return false
  }
  if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
    return false
  }
  if isCarrierGradeNAT(ip) {
    return false
  }
  return true
}

// 100.64.0.0/10, not covered by net.IP.IsPrivate.
func isCarrierGradeNAT(ip net.IP) bool {
  v4 := ip.To4()
  if v4 == nil {
    return false
  }
  return v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127
}
