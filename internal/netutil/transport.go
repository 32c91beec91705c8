package netutil

import (
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// NewCloudTransport builds the HTTP transport shared by the SmartStart cloud
// client. The cloud endpoints are slow to answer status reads, so the
// transport keeps connections pooled and allows generous handshake windows
// while the per-request timeout lives in the http.Client.
func NewCloudTransport(logger *logrus.Logger) *http.Transport {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
	}

	logger.Debug("Cloud HTTP transport initialised")
	return transport
}
