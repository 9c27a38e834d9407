package main

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 5 * time.Second

// dashboardURL builds a websocket URL for a dashboard bind address.
func dashboardURL(bind, path string) string {
	host, port, err := net.SplitHostPort(bind)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		bind = net.JoinHostPort("127.0.0.1", port)
	}
	u := url.URL{Scheme: "ws", Host: bind, Path: path}
	return u.String()
}

func dial(rawURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(rawURL, nil)
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return nil, fmt.Errorf("connect to %s: no dashboard listening; start one with `angler run --dashboard`", rawURL)
		}
		return nil, fmt.Errorf("connect to %s: %w", rawURL, err)
	}
	return conn, nil
}
