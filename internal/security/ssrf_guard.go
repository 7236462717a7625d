// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes はリモートカタログの取得で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は外部取得先として拒否するネットワーク範囲。
// safeurlのDialer検証に加えて、起動時の設定チェックで使用する。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", // RFC 1918
	"127.0.0.0/8",    // ループバック
	"169.254.0.0/16", // リンクローカル（メタデータIPを含む）
	"0.0.0.0/8",
	"::1/128", "fe80::/10", "fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// RemoteGuard はCATALOG_URLのような外部取得先へのSSRFを防止する。
type RemoteGuard struct {
	allowedPorts []int
}

// NewRemoteGuard はポート80/443のみを許可するRemoteGuardを生成する。
func NewRemoteGuard() *RemoteGuard {
	return &RemoteGuard{allowedPorts: []int{80, 443}}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlがDNS解決後のIPアドレスをDialerで検証するため、
// プライベートIPやメタデータIPへの接続はDNS再バインディング経由でも拒否される。
func (g *RemoteGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。
// 起動時にCATALOG_URLを検査し、明らかに危険な設定を早期に検出する。
func (g *RemoteGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// 1. スキーム
	scheme := strings.ToLower(parsed.Scheme)
	if !containsFold(allowedSchemes, scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	// 2. ホスト
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	// 3. IPリテラル
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip.String())
			}
		}
	}

	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
