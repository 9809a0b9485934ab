package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/railsentry/mailgate/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.7:54321",
			want:       "203.0.113.7",
		},
		{
			name:       "cloudflare header wins",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"CF-Connecting-IP": "198.51.100.4",
				"X-Forwarded-For":  "192.0.2.1",
			},
			want: "198.51.100.4",
		},
		{
			name:       "x-forwarded-for leftmost client",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "192.0.2.1, 10.0.0.2, 10.0.0.3",
			},
			want: "192.0.2.1",
		},
		{
			name:       "x-forwarded-for skips garbage entries",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "not-an-ip, 192.0.2.9",
			},
			want: "192.0.2.9",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Real-IP": "192.0.2.55",
			},
			want: "192.0.2.55",
		},
		{
			name:       "unspecified address rejected",
			remoteAddr: "203.0.113.7:54321",
			headers: map[string]string{
				"X-Real-IP": "0.0.0.0",
			},
			want: "203.0.113.7",
		},
		{
			name:       "ipv6 normalized",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Real-IP": "2001:0db8:0000:0000:0000:0000:0000:0001",
			},
			want: "2001:db8::1",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[::1]:8080",
			want:       "::1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, clientip.GetIP(r))
		})
	}
}
