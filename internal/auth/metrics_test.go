package auth

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
)

// listenStatsd opens a udp listener on a free local port for a statsd client to write to.
func listenStatsd(t *testing.T) (net.PacketConn, string, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error %s", err.Error())
	}
	addr := pc.LocalAddr().(*net.UDPAddr)
	return pc, "127.0.0.1", addr.Port
}

func readPacket(t *testing.T, pc net.PacketConn, n int) string {
	t.Helper()
	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	readBytes := make([]byte, n)
	_, _, err := pc.ReadFrom(readBytes)
	if err != nil {
		t.Fatalf("error reading statsd packet: %s", err.Error())
	}
	return string(readBytes)
}

func TestNewStatsd(t *testing.T) {
	testCases := []struct {
		name                 string
		additionalTags       []string
		expectedGlobalTags   []string
		expectedNamespace    string
		expectedPacketString string
	}{
		{
			name: "normal case no additional tags",
			expectedGlobalTags: []string{
				"service:authdispatch",
			},
			expectedNamespace:    "authdispatch.",
			expectedPacketString: "authdispatch.request:1|c|#service:authdispatch",
		},
		{
			name: "normal case with additional tags",
			expectedGlobalTags: []string{
				"service:authdispatch",
			},
			additionalTags: []string{
				"another:tag",
			},
			expectedNamespace:    "authdispatch.",
			expectedPacketString: "authdispatch.request:1|c|#service:authdispatch,another:tag",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pc, host, port := listenStatsd(t)
			defer pc.Close()

			client, err := NewStatsdClient(host, port)
			if err != nil {
				t.Fatalf("error starting new statsd client: %s", err.Error())
			}
			defer client.Close()

			if client.Namespace != tc.expectedNamespace {
				t.Errorf("expected client namespace to be %s but was %s", tc.expectedNamespace, client.Namespace)
			}

			if len(client.Tags) != len(tc.expectedGlobalTags) {
				t.Errorf("expected length of global tags to be %d but was %d", len(tc.expectedGlobalTags), len(client.Tags))
			}
			for i, expectedTag := range tc.expectedGlobalTags {
				if client.Tags[i] != tc.expectedGlobalTags[i] {
					t.Errorf("expected tag %d to be %s but was %s", i, expectedTag, client.Tags[i])
				}
			}

			err = client.Incr("request", tc.additionalTags, 1.0)
			if err != nil {
				t.Fatalf("expected error to be nil but was %s", err.Error())
			}

			packetString := readPacket(t, pc, len(tc.expectedPacketString))
			if packetString != tc.expectedPacketString {
				t.Errorf("expected packet string to be %s but was %s", tc.expectedPacketString, packetString)
			}
		})
	}
}

func TestLogRequestMetrics(t *testing.T) {
	testCases := []struct {
		name         string
		requestURL   string
		method       string
		status       int
		expectedTags []string
	}{
		{
			name:       "request url is / so provider and action are unknown",
			requestURL: "/",
			method:     "GET",
			status:     http.StatusOK,
			expectedTags: []string{
				"service:authdispatch",
				"method:GET",
				fmt.Sprintf("status_code:%d", http.StatusOK),
				"status_category:2xx",
				"provider:unknown",
				"action:unknown",
			},
		},
		{
			name:       "initiate path adds provider and action to tags",
			requestURL: "/auth/google?query=parameter",
			method:     "GET",
			status:     http.StatusFound,
			expectedTags: []string{
				"service:authdispatch",
				"method:GET",
				fmt.Sprintf("status_code:%d", http.StatusFound),
				"status_category:3xx",
				"provider:google",
				"action:initiate",
			},
		},
		{
			name:       "callback path adds provider and action to tags",
			requestURL: "/auth/twitter/callback?oauth_verifier=v1",
			method:     "GET",
			status:     http.StatusFound,
			expectedTags: []string{
				"service:authdispatch",
				"method:GET",
				fmt.Sprintf("status_code:%d", http.StatusFound),
				"status_category:3xx",
				"provider:twitter",
				"action:callback",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pc, host, port := listenStatsd(t)
			defer pc.Close()

			client, err := NewStatsdClient(host, port)
			if err != nil {
				t.Fatalf("error starting new statsd client: %s", err.Error())
			}
			defer client.Close()

			tagString := strings.Join(tc.expectedTags, ",")
			expectedPacketString := fmt.Sprintf("authdispatch.request:5.000000|ms|#%s", tagString)
			req := httptest.NewRequest(tc.method, tc.requestURL, nil)

			logRequestMetrics(req, time.Millisecond*5, tc.status, client)
			packetString := readPacket(t, pc, len(expectedPacketString))
			if expectedPacketString != packetString {
				t.Errorf("expected packet string to be %s but was %s", expectedPacketString, packetString)
			}
		})
	}
}

func TestGetActionTag(t *testing.T) {
	testCases := []struct {
		name             string
		url              string
		expectedAction   string
		expectedProvider string
	}{
		{
			name:             "ping",
			url:              "/ping",
			expectedAction:   "ping",
			expectedProvider: "unknown",
		},
		{
			name:             "initiate",
			url:              "/auth/facebook",
			expectedAction:   "initiate",
			expectedProvider: "facebook",
		},
		{
			name:             "initiate with query parameters and trailing slash",
			url:              "/auth/facebook/?identity_url=x",
			expectedAction:   "initiate",
			expectedProvider: "facebook",
		},
		{
			name:             "callback",
			url:              "/auth/linkedin/callback",
			expectedAction:   "callback",
			expectedProvider: "linkedin",
		},
		{
			name:             "unknown sub path",
			url:              "/auth/linkedin/other",
			expectedAction:   "unknown",
			expectedProvider: "linkedin",
		},
		{
			name:             "auth with no provider",
			url:              "/auth/",
			expectedAction:   "unknown",
			expectedProvider: "unknown",
		},
		{
			name:             "root",
			url:              "/",
			expectedAction:   "unknown",
			expectedProvider: "unknown",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			if action := GetActionTag(req); action != tc.expectedAction {
				t.Errorf("expected action to be %s but was %s", tc.expectedAction, action)
			}
			if provider := getProviderTag(req); provider != tc.expectedProvider {
				t.Errorf("expected provider to be %s but was %s", tc.expectedProvider, provider)
			}
		})
	}
}

// recordingStatsd keeps the counters the dispatcher and handlers emit.
type recordingStatsd struct {
	statsd.NoOpClient

	incrs []recordedMetric
}

type recordedMetric struct {
	name string
	tags []string
}

func (r *recordingStatsd) Incr(name string, tags []string, rate float64) error {
	r.incrs = append(r.incrs, recordedMetric{name: name, tags: tags})
	return nil
}

func (r *recordingStatsd) counted(name string) []recordedMetric {
	var out []recordedMetric
	for _, m := range r.incrs {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}
