package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/capture"
	"github.com/audiolibrelab/deskcapture/internal/config"
	"github.com/audiolibrelab/deskcapture/internal/permission"
	"github.com/audiolibrelab/deskcapture/internal/screenshot"
)

type stubScreens struct{}

func (stubScreens) Capture(ctx context.Context, opts screenshot.Options) screenshot.Result {
	if opts.Quality == "ultra" {
		return screenshot.Result{Success: false, Error: `unknown quality "ultra"`}
	}
	return screenshot.Result{Success: true, Data: []byte{0xff, 0xd8, 0xff}, Width: 2, Height: 1}
}

type stubNegotiator struct {
	status permission.Status
}

func (s stubNegotiator) Check(ctx context.Context) permission.Status { return s.status }
func (s stubNegotiator) RequestMicrophone(ctx context.Context) permission.MicrophoneResult {
	return permission.MicrophoneResult{Granted: true, Status: permission.AccessGranted}
}
func (s stubNegotiator) OpenSettings(ctx context.Context, section string) permission.SettingsResult {
	return permission.SettingsResult{Success: section == permission.SectionScreen}
}

type stubSources struct {
	err error
}

func (s stubSources) ListSources(ctx context.Context) ([]audio.PulseSource, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []audio.PulseSource{{Name: "alsa_output.monitor", Monitor: true}}, nil
}

func newTestServer(t *testing.T, neg permission.Negotiator, sources SourceLister) *httptest.Server {
	t.Helper()
	cfg := config.Default(config.PlatformWindows)
	o, err := capture.New(cfg, capture.Options{Permissions: neg, Screenshots: stubScreens{}})
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	ts := httptest.NewServer(New(o, sources, nil, "0", "default").Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func post(t *testing.T, url, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestCaptureLifecycle(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	body := decode(t, resp)
	status := body["status"].(map[string]interface{})
	if status["state"] != "IDLE" {
		t.Errorf("Expected IDLE, got %v", status["state"])
	}

	resp = post(t, ts.URL+"/capture/start", "application/json", nil)
	body = decode(t, resp)
	if resp.StatusCode != http.StatusOK || body["success"] != true || body["sessionId"] == "" {
		t.Fatalf("Expected start success, got %d %v", resp.StatusCode, body)
	}

	resp = post(t, ts.URL+"/capture/audio", "application/octet-stream", make([]byte, 9600))
	body = decode(t, resp)
	if body["chunks"] != float64(2) {
		t.Errorf("Expected 2 chunks from pushed audio, got %v", body["chunks"])
	}

	resp = post(t, ts.URL+"/capture/stop", "application/json", nil)
	var stop capture.StopResult
	if err := json.NewDecoder(resp.Body).Decode(&stop); err != nil {
		t.Fatalf("Failed to decode stop result: %v", err)
	}
	resp.Body.Close()
	if !stop.Success || len(stop.Chunks) != 2 {
		t.Fatalf("Expected 2 chunks on stop, got %+v", stop)
	}
	if len(stop.Chunks[0].Data) != 4800 || stop.Chunks[0].MimeType != "audio/pcm;rate=24000" {
		t.Errorf("Unexpected chunk: %d bytes, %s", len(stop.Chunks[0].Data), stop.Chunks[0].MimeType)
	}

	resp = post(t, ts.URL+"/capture/audio", "application/octet-stream", make([]byte, 10))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 when feeding while idle, got %d", resp.StatusCode)
	}
}

func TestStart_PermissionErrorMapping(t *testing.T) {
	neg := stubNegotiator{status: permission.Status{Microphone: permission.AccessUnknown, Screen: permission.AccessUnknown, NeedsSetup: true}}
	ts := newTestServer(t, neg, nil)

	resp := post(t, ts.URL+"/capture/start", "application/json", nil)
	body := decode(t, resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", resp.StatusCode)
	}
	if body["error_type"] != "permission" || body["success"] != false {
		t.Errorf("Unexpected body: %v", body)
	}
	perms, ok := body["permissions"].(map[string]interface{})
	if !ok || perms["needsSetup"] != true {
		t.Errorf("Expected permission status in body, got %v", body["permissions"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/capture/start")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body := decode(t, resp)
	if resp.StatusCode != http.StatusMethodNotAllowed || body["error"] != "Method not allowed" {
		t.Errorf("Expected 405, got %d %v", resp.StatusCode, body)
	}
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := post(t, ts.URL+"/config", "application/json", []byte(`{"chunkDurationSeconds": 0}`))
	body := decode(t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity || body["success"] != false {
		t.Errorf("Expected 422 for invalid patch, got %d %v", resp.StatusCode, body)
	}

	resp = post(t, ts.URL+"/config", "application/json", []byte(`{"chunkDurationSeconds": 0.05}`))
	body = decode(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d %v", resp.StatusCode, body)
	}
	if body["chunk_size"] != float64(2400) {
		t.Errorf("Expected chunk size 2400, got %v", body["chunk_size"])
	}
	cfg := body["config"].(map[string]interface{})
	if cfg["sampleRate"] != float64(24000) {
		t.Errorf("Expected untouched sample rate, got %v", cfg["sampleRate"])
	}

	resp = post(t, ts.URL+"/config", "application/json", []byte(`{"volume": 3}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestScreenshotEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := post(t, ts.URL+"/screenshot", "application/json", []byte(`{"quality":"low"}`))
	var res screenshot.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	resp.Body.Close()
	if !res.Success || !bytes.Equal(res.Data, []byte{0xff, 0xd8, 0xff}) {
		t.Errorf("Expected screenshot data, got %+v", res)
	}

	resp = post(t, ts.URL+"/screenshot?quality=ultra", "application/json", nil)
	body := decode(t, resp)
	if resp.StatusCode != http.StatusOK || body["success"] != false {
		t.Errorf("Expected failure in body with 200, got %d %v", resp.StatusCode, body)
	}
}

func TestPermissionsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, _ := http.Get(ts.URL + "/permissions")
	body := decode(t, resp)
	perms := body["permissions"].(map[string]interface{})
	if perms["microphone"] != "granted" || perms["screen"] != "granted" || perms["needsSetup"] != false {
		t.Errorf("Expected browser grants, got %v", perms)
	}

	resp = post(t, ts.URL+"/settings/open", "application/json", []byte(`{"section":"screen"}`))
	body = decode(t, resp)
	if body["success"] != false || body["error"] != "not supported on this platform" {
		t.Errorf("Expected unsupported settings result, got %v", body)
	}

	resp = post(t, ts.URL+"/permissions/microphone", "application/json", nil)
	body = decode(t, resp)
	if body["granted"] != true {
		t.Errorf("Expected microphone grant, got %v", body)
	}
}

func TestSourcesAndSessions(t *testing.T) {
	ts := newTestServer(t, nil, stubSources{})

	resp, _ := http.Get(ts.URL + "/sources")
	body := decode(t, resp)
	sources := body["sources"].([]interface{})
	if len(sources) != 1 {
		t.Errorf("Expected 1 source, got %v", sources)
	}

	resp, _ = http.Get(ts.URL + "/sessions")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("Expected 501 without archive, got %d", resp.StatusCode)
	}

	failing := newTestServer(t, nil, stubSources{err: errors.New("pactl missing")})
	resp, _ = http.Get(failing.URL + "/sources")
	body = decode(t, resp)
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(body["error"].(string), "pactl missing") {
		t.Errorf("Expected 500 with cause, got %d %v", resp.StatusCode, body)
	}
}

func TestPlatformEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, _ := http.Get(ts.URL + "/platform")
	body := decode(t, resp)
	if body["platform"] != "windows" || body["strategy"] != "delegated" {
		t.Errorf("Unexpected platform body: %v", body)
	}
}
