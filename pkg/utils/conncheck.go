package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/mpapenbr/lanerace-service-go/log"
)

// WaitForTCP tries to connect to addr until it succeeds, the timeout is
// reached or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v", addr, timeout)
		case <-ticker.C:
		}
	}
}

// ExtractFromDBURL returns host:port of a postgresql:// url, port defaults
// to 5432.
func ExtractFromDBURL(url string) string {
	return extractAddr(
		"^postgres(ql)?://(.*@)?(?P<addr>(?P<host>[^:/?]*?)(:(?P<port>\\d+))?)(/.*)?$",
		url, 5432)
}

// ExtractFromNatsURL returns host:port of a nats:// url, port defaults to 4222.
func ExtractFromNatsURL(url string) string {
	return extractAddr(
		"^(nats|tls)://(.*@)?(?P<addr>(?P<host>[^:/?]*?)(:(?P<port>\\d+))?)(/.*)?$",
		url, 4222)
}

func extractAddr(regEx, url string, defaultPort int) string {
	param := resolveRegex(regEx, url)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	if port, ok := param["port"]; ok && port != "" {
		return param["addr"] // if port is found, the addr contains our wanted value
	}
	return fmt.Sprintf("%s:%d", param["addr"], defaultPort)
}

func resolveRegex(regEx, url string) (paramsMap map[string]string) {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)

	paramsMap = make(map[string]string)
	if match == nil {
		return paramsMap
	}
	for i, name := range compRegEx.SubexpNames() {
		if i > 0 && name != "" && i < len(match) {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
