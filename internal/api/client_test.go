package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func loginBody(token string) string {
	return `{"results":{"authToken":{"accessToken":"` + token + `","expiration":1893456000}}}`
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "user@example.com", r.PostForm.Get("username"))
		require.Equal(t, "hunter2", r.PostForm.Get("password"))

		w.Write([]byte(loginBody("tok-1")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "hunter2", testLogger())
	require.False(t, c.IsAuthenticated())

	require.NoError(t, c.Authenticate(context.Background()))
	require.True(t, c.IsAuthenticated())
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "wrong", testLogger())
	err := c.Authenticate(context.Background())
	require.True(t, IsAuthError(err))
	require.False(t, c.IsAuthenticated())
}

func TestAuthenticateMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	err := c.Authenticate(context.Background())
	require.Error(t, err)
	require.False(t, IsAuthError(err), "a garbled body is a transient API problem")
}

func TestAuthenticateMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	err := c.Authenticate(context.Background())
	require.True(t, IsAuthError(err))
}

func TestVehicles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(loginBody("tok-1")))
		case "/devices/search/null":
			require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.Write([]byte(`{"results":{"devices":[
				{"id":1234,"name":"Wrangler","make":"Jeep","model":"Wrangler","year":"2019"},
				{"id":"5678","name":""}
			]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	require.NoError(t, c.Authenticate(context.Background()))

	vehicles, err := c.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	require.Equal(t, "1234", vehicles[0].ID)
	require.Equal(t, "Wrangler", vehicles[0].Name)
	require.Equal(t, "2019 Jeep Wrangler", vehicles[0].ModelString())
	require.Equal(t, "5678", vehicles[1].ID)
	require.Equal(t, "Vehicle 5678", vehicles[1].Name, "unnamed devices get a fallback name")
}

func TestVehiclesUnauthenticated(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "user", "pw", testLogger())
	_, err := c.Vehicles(context.Background())
	require.True(t, IsAuthError(err))
}

func TestVehiclesTokenExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Write([]byte(loginBody("tok-1")))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.Vehicles(context.Background())
	require.True(t, IsAuthError(err))
}

func TestVehicleStatusReadsIndependentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Write([]byte(loginBody("tok-1")))
			return
		}

		var req commandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "1234", req.DeviceID)

		switch req.Command {
		case "read_active":
			w.Write([]byte(`{"results":{"device":{"latitude":44.9,"deviceStatus":{"ignitionOn":true}}}}`))
		case "read_current":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			t.Errorf("unexpected command %s", req.Command)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	require.NoError(t, c.Authenticate(context.Background()))

	active, current := c.VehicleStatusReads(context.Background(), "1234")
	require.False(t, active.Failed())
	require.NotNil(t, active.Doc.Results.Device)
	require.True(t, current.Failed())
	require.False(t, IsAuthError(current.Err))
}

func TestVehicleStatusReadsAuthExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Write([]byte(loginBody("tok-1")))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	require.NoError(t, c.Authenticate(context.Background()))

	active, current := c.VehicleStatusReads(context.Background(), "1234")
	require.True(t, IsAuthError(active.Err))
	require.True(t, IsAuthError(current.Err))
}

func TestCommand(t *testing.T) {
	var commands atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Write([]byte(loginBody("tok-1")))
			return
		}
		require.Equal(t, "/devices/command", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req commandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, CommandArm, req.Command)
		commands.Add(1)

		w.Write([]byte(`{"results":{"device":{}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	require.NoError(t, c.Authenticate(context.Background()))

	require.NoError(t, c.Command(context.Background(), "1234", CommandArm))
	require.Equal(t, int32(1), commands.Load())
}

func TestCommandMissingEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Write([]byte(loginBody("tok-1")))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pw", testLogger())
	require.NoError(t, c.Authenticate(context.Background()))

	err := c.Command(context.Background(), "1234", CommandRemote)
	require.Error(t, err)
	require.False(t, IsAuthError(err))
}

func TestDeviceIDString(t *testing.T) {
	require.Equal(t, "1234", deviceIDString(float64(1234)))
	require.Equal(t, "1234.5", deviceIDString(float64(1234.5)))
	require.Equal(t, "abc", deviceIDString("abc"))
	require.Equal(t, "99", deviceIDString(json.Number("99")))
}
