package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startUDPListener returns a local UDP endpoint and a channel of received lines.
func startUDPListener(t *testing.T) (string, <-chan string) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	lines := make(chan string, 16)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, _, readErr := conn.ReadFrom(buf)
			if readErr != nil {
				return
			}
			lines <- string(buf[:n])
		}
	}()
	return conn.LocalAddr().String(), lines
}

func receive(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("no metric received")
		return ""
	}
}

func TestClientCount(t *testing.T) {
	addr, lines := startUDPListener(t)
	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "erpsync"})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	client.Count("delivery.attempt", 1, map[string]string{"result": "success"})
	assert.Equal(t, "erpsync.delivery.attempt:1|c|#result:success", receive(t, lines))
}

func TestClientTiming(t *testing.T) {
	addr, lines := startUDPListener(t)
	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "erpsync"})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	client.Timing("fetch.duration", 1500*time.Millisecond, nil)
	assert.Equal(t, "erpsync.fetch.duration:1500|ms", receive(t, lines))
}

func TestClientGlobalTagsMerged(t *testing.T) {
	addr, lines := startUDPListener(t)
	client, err := NewClient(Config{
		Enabled:    true,
		Address:    addr,
		Prefix:     "erpsync",
		GlobalTags: map[string]string{"plant": "plant01"},
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	client.Count("fetch.cycle", 1, map[string]string{"result": "success"})
	assert.Equal(t, "erpsync.fetch.cycle:1|c|#plant:plant01,result:success", receive(t, lines))
}

func TestClientDisabledSwallows(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:9"})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	client.Count("anything", 1, nil)
	client.Gauge("anything", 1.5, nil)
	client.Timing("anything", time.Second, nil)
	assert.NoError(t, client.Close())
}

func TestNilClientIsSafe(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
	client.Count("x", 1, nil)
	assert.NoError(t, client.Close())
}

func TestMetricNameNormalization(t *testing.T) {
	client, err := NewClient(Config{Prefix: "erpsync"})
	require.NoError(t, err)

	assert.Equal(t, "erpsync.fetch.cycle", client.metricName("fetch.cycle"))
	assert.Equal(t, "erpsync.fetch_cycle", client.metricName("fetch cycle"))
	assert.Equal(t, "erpsync.a.b", client.metricName("a..b."))
	assert.Equal(t, "erpsync", client.metricName("  "))
}
