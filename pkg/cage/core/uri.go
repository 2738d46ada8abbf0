package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graybat-go/cage/pkg/cage/types"
)

// splitURI splits a "scheme://host:port" URI into its "scheme://host"
// prefix and numeric port, the way the original ZMQ policy's
// bindToNextFreePort parsed its peerUri.
func splitURI(uri string) (string, int, error) {
	idx := strings.LastIndex(uri, ":")
	if idx < 0 {
		return "", 0, types.NewConfigError(fmt.Sprintf("peer_uri %q has no port", uri))
	}
	port, err := strconv.Atoi(uri[idx+1:])
	if err != nil {
		return "", 0, types.NewConfigError(fmt.Sprintf("peer_uri %q has a non-numeric port: %v", uri, err))
	}
	return uri[:idx], port, nil
}

func joinURI(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// controlURI derives a peer's control-channel URI from its main URI: one
// port above it. Every peer binds its control PULL socket immediately
// after its main PULL socket (see newSocketPool), so this holds as long
// as nothing else raced for that port in between — acceptable for the
// single-host/known-port-range deployments this substrate targets.
func controlURI(mainURI string) string {
	host, port, err := splitURI(mainURI)
	if err != nil {
		return mainURI
	}
	return joinURI(host, port+1)
}
