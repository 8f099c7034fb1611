package proxy

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// buildPacket assembles the EZProxy ticket packet. The layout is fixed by the
// proxy appliance: "$u" + unix time + "$g" + groups joined by "+" + "$e".
func buildPacket(now time.Time, groups []string) string {
	return fmt.Sprintf("$u%d$g%s$e", now.Unix(), strings.Join(groups, "+"))
}

// signPacket produces the hex SHA-512 over secret + username + packet.
func signPacket(secret, username, packet string) string {
	sum := sha512.Sum512([]byte(secret + username + packet))
	return hex.EncodeToString(sum[:])
}

// ticket returns the URL-encoded signature+packet blob the proxy expects.
func ticket(secret, username string, groups []string, now time.Time) string {
	packet := buildPacket(now, groups)
	return url.QueryEscape(signPacket(secret, username, packet) + packet)
}

// loginURL assembles the proxy redirect for the given user and target.
func loginURL(baseURL, username, encodedTicket, target string) string {
	return fmt.Sprintf(
		"%s/login?user=%s&ticket=%s&url=%s",
		strings.TrimRight(baseURL, "/"),
		url.QueryEscape(username),
		encodedTicket,
		url.QueryEscape(target),
	)
}
