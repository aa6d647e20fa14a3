package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	successScript = `echo "loading weights" >&2
echo "model ready"
echo '{"trashDetected":true,"confidence":0.8,"detections":[{"class":"bottle","confidence":0.8,"bbox":[1,2,3,4]}],"processTime":0.1}'`
	failingScript = `echo "CUDA out of memory" >&2
exit 1`
	// echoScript reports the staged file's content back as the class.
	echoScript = `marker=$(cat "$2")
echo "{\"trashDetected\":true,\"confidence\":0.5,\"detections\":[{\"class\":\"$marker\",\"confidence\":0.5,\"bbox\":[0,0,1,1]}]}"`
)

type testGateway struct {
	server *Server
	cfg    *GatewayConfig
}

func newTestGateway(t *testing.T, script string, withWeights bool) *testGateway {
	t.Helper()
	return newTestGatewayWith(t, script, withWeights, nil)
}

// newTestGatewayWith lets a test adjust the config before the server is
// assembled and append server options.
func newTestGatewayWith(t *testing.T, script string, withWeights bool, adjust func(cfg *GatewayConfig), extra ...ServerOption) *testGateway {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}

	root := t.TempDir()
	scriptPath := filepath.Join(root, "main.sh")
	if err := os.WriteFile(scriptPath, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	weights := filepath.Join(root, "best.pt")
	if withWeights {
		if err := os.WriteFile(weights, []byte("weights"), 0o644); err != nil {
			t.Fatalf("Failed to write weights: %v", err)
		}
	}

	cfg := &GatewayConfig{
		Port:             "0",
		Interpreter:      "/bin/sh",
		Script:           scriptPath,
		Weights:          weights,
		WorkDir:          root,
		Subcommand:       "detect",
		Timeout:          10 * time.Second,
		StagingDir:       filepath.Join(root, "uploads"),
		MaxUploadSize:    1024,
		CORSAllowOrigins: "*",
		ResultCacheTTL:   time.Minute,
	}

	if adjust != nil {
		adjust(cfg)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	options := []ServerOption{
		WithFiber(NewFiber(logger, cfg.MaxUploadSize)),
		WithLogger(logger),
		WithValidator(NewValidator()),
		WithGatewayConfig(cfg),
		WithUtils(),
		WithMiddleware(),
		WithResultCache(),
	}
	server, err := NewServer(append(options, extra...)...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	server.RegisterHandler()
	t.Cleanup(func() { server.Shutdown(time.Second) })

	return &testGateway{server: server, cfg: cfg}
}

func (g *testGateway) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := g.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return resp.StatusCode, body
}

func (g *testGateway) assertNothingStaged(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(g.cfg.StagingDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("Failed to read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected staging dir to be empty, found %d entries", len(entries))
	}
}

func uploadRequest(t *testing.T, field, contentType string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="photo.png"`, field))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ai/detect", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestDetect_Success(t *testing.T) {
	g := newTestGateway(t, successScript, true)

	status, body := g.do(t, uploadRequest(t, "image", "image/png", []byte("fake-png")))
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}

	if body["success"] != true {
		t.Errorf("Expected success true, got %v", body["success"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("Invalid timestamp %v: %v", body["timestamp"], err)
	}

	result := body["result"].(map[string]interface{})
	if result["trashDetected"] != true || result["confidence"] != 0.8 {
		t.Errorf("Unexpected result %v", result)
	}
	detections := result["detections"].([]interface{})
	if len(detections) != 1 || detections[0].(map[string]interface{})["class"] != "bottle" {
		t.Errorf("Unexpected detections %v", detections)
	}
	if pt, ok := result["processTime"].(float64); !ok || pt < 0 {
		t.Errorf("Expected non-negative processTime, got %v", result["processTime"])
	}

	g.assertNothingStaged(t)
}

func TestDetect_RequestIDHeader(t *testing.T) {
	g := newTestGateway(t, successScript, true)

	req := uploadRequest(t, "image", "image/png", []byte("fake-png"))
	req.Header.Set("X-Request-ID", "req-123")

	resp, err := g.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}
}

func TestDetect_RejectedUploads(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		contentType string
		content     []byte
		wantError   string
	}{
		{
			name:        "missing image field",
			field:       "photo",
			contentType: "image/png",
			content:     []byte("fake-png"),
			wantError:   "No image file provided",
		},
		{
			name:        "non image",
			field:       "image",
			contentType: "text/plain",
			content:     []byte("hello"),
			wantError:   "Only image files are allowed",
		},
		{
			name:        "too large",
			field:       "image",
			contentType: "image/png",
			content:     bytes.Repeat([]byte("x"), 2048),
			wantError:   "File too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, successScript, true)

			status, body := g.do(t, uploadRequest(t, tt.field, tt.contentType, tt.content))
			if status != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %v", status, body)
			}
			if body["success"] != false || body["error"] != tt.wantError {
				t.Errorf("Unexpected body %v", body)
			}

			g.assertNothingStaged(t)
		})
	}
}

func TestDetect_ModelFailure(t *testing.T) {
	g := newTestGateway(t, failingScript, true)

	status, body := g.do(t, uploadRequest(t, "image", "image/png", []byte("fake-png")))
	if status != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %v", status, body)
	}

	if body["error"] != "AI model processing failed" {
		t.Errorf("Unexpected error %v", body["error"])
	}
	details, _ := body["details"].(string)
	if !strings.Contains(details, "code 1") || !strings.Contains(details, "CUDA out of memory") {
		t.Errorf("Expected details to carry exit code and stderr, got %q", details)
	}
	if body["exit_code"] != float64(1) {
		t.Errorf("Expected exit_code 1, got %v", body["exit_code"])
	}

	g.assertNothingStaged(t)
}

func TestDetect_UnparseableOutput(t *testing.T) {
	g := newTestGateway(t, `echo '{"trashDetected": tru'`, true)

	status, body := g.do(t, uploadRequest(t, "image", "image/png", []byte("fake-png")))
	if status != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %v", status, body)
	}
	if _, ok := body["exit_code"]; ok {
		t.Error("Parse failures must not report an exit code")
	}

	g.assertNothingStaged(t)
}

func TestDetect_ConcurrentRequestsAreIsolated(t *testing.T) {
	g := newTestGateway(t, echoScript, true)

	const n = 8
	requests := make([]*http.Request, n)
	for i := range requests {
		requests[i] = uploadRequest(t, "image", "image/png", []byte(fmt.Sprintf("marker-%d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			marker := fmt.Sprintf("marker-%d", i)
			resp, err := g.server.App().Test(requests[i], -1)
			if err != nil {
				t.Errorf("Request %d failed: %v", i, err)
				return
			}
			defer resp.Body.Close()

			var body struct {
				Result struct {
					Detections []struct {
						Class string `json:"class"`
					} `json:"detections"`
				} `json:"result"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Errorf("Request %d: invalid body: %v", i, err)
				return
			}
			if len(body.Result.Detections) != 1 || body.Result.Detections[0].Class != marker {
				t.Errorf("Request %d saw another request's image: %+v", i, body.Result.Detections)
			}
		}(i)
	}
	wg.Wait()

	g.assertNothingStaged(t)
}

func TestDetectBase64(t *testing.T) {
	g := newTestGateway(t, successScript, true)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

	payload := fmt.Sprintf(`{"image_base64":"data:image/png;base64,%s"}`, base64.StdEncoding.EncodeToString(png))
	req := httptest.NewRequest(http.MethodPost, "/api/ai/detect/base64", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	status, body := g.do(t, req)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("Expected success, got %d: %v", status, body)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ai/detect/base64", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	status, body = g.do(t, req)
	if status != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing field, got %d: %v", status, body)
	}
	if !strings.HasPrefix(body["error"].(string), "Validation failed") {
		t.Errorf("Unexpected error %v", body["error"])
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ai/detect/base64", strings.NewReader(`{"image_base64":"!!!"}`))
	req.Header.Set("Content-Type", "application/json")

	status, body = g.do(t, req)
	if status != http.StatusBadRequest || body["error"] != "Invalid base64 image data" {
		t.Errorf("Expected invalid data error, got %d: %v", status, body)
	}

	g.assertNothingStaged(t)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name        string
		withWeights bool
	}{
		{name: "ready", withWeights: true},
		{name: "weights missing", withWeights: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, successScript, tt.withWeights)

			status, body := g.do(t, httptest.NewRequest(http.MethodGet, "/api/ai/health", nil))
			if status != http.StatusOK {
				t.Fatalf("Health must always answer 200, got %d", status)
			}
			if body["status"] != "healthy" || body["service"] != "AI Detection API" {
				t.Errorf("Unexpected body %v", body)
			}

			readiness := body["model_readiness"].(map[string]interface{})
			if readiness["interpreter_present"] != true || readiness["script_present"] != true {
				t.Errorf("Unexpected readiness %v", readiness)
			}
			if readiness["weights_present"] != tt.withWeights || readiness["ready"] != tt.withWeights {
				t.Errorf("Expected weights_present and ready to be %v, got %v", tt.withWeights, readiness)
			}
		})
	}
}

func TestModelInfo(t *testing.T) {
	g := newTestGateway(t, successScript, true)

	status, body := g.do(t, httptest.NewRequest(http.MethodGet, "/api/ai/model-info", nil))
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("Unexpected response %d: %v", status, body)
	}

	model := body["model"].(map[string]interface{})
	if model["architecture"] != "YOLOv8n" || model["input_resolution"] != "640x640" {
		t.Errorf("Unexpected model metadata %v", model)
	}
	if classes := model["classes"].([]interface{}); len(classes) != 1 || classes[0] != "trash" {
		t.Errorf("Unexpected classes %v", classes)
	}
	performance := model["performance"].(map[string]interface{})
	if performance["map_50"] != 0.329 {
		t.Errorf("Unexpected performance %v", performance)
	}
}

func TestRootLiveness(t *testing.T) {
	g := newTestGateway(t, successScript, true)

	status, body := g.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if status != http.StatusOK || body["message"] != "Server is Healthy!" {
		t.Errorf("Unexpected response %d: %v", status, body)
	}
}

func TestShutdownCancelsInFlightDetection(t *testing.T) {
	g := newTestGateway(t, `exec sleep 30`, true)

	req := uploadRequest(t, "image", "image/png", []byte("fake-png"))
	done := make(chan int, 1)
	go func() {
		resp, err := g.server.App().Test(req, -1)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	time.Sleep(300 * time.Millisecond)
	g.server.cancelBase()

	select {
	case status := <-done:
		if status != http.StatusInternalServerError {
			t.Errorf("Expected 500 after cancellation, got %d", status)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("In-flight detection was not cancelled")
	}

	g.assertNothingStaged(t)
}

func TestDetect_ModelRunsOutsideGatewayDir(t *testing.T) {
	gatewayDir := t.TempDir()
	testChdir(t, gatewayDir)

	script := `test -f "$2" || { echo "cannot open $2 from $(pwd)" >&2; exit 3; }
echo '{"trashDetected":false,"confidence":0.1,"detections":[]}'`

	var modelDir string
	g := newTestGatewayWith(t, script, true, func(cfg *GatewayConfig) {
		cfg.StagingDir = "uploads"
		modelDir = cfg.WorkDir
	})
	if modelDir == gatewayDir {
		t.Fatal("Model work dir must differ from the gateway's working directory")
	}

	status, body := g.do(t, uploadRequest(t, "image", "image/png", []byte("fake-png")))
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}

	g.assertNothingStaged(t)
	if _, err := os.Stat(filepath.Join(gatewayDir, "uploads")); err != nil {
		t.Errorf("Expected staging dir under the gateway's working directory: %v", err)
	}
}

type panickingInvoker struct{}

func (panickingInvoker) Run(context.Context, string) (string, error) {
	panic("model bridge crashed")
}

func TestDetect_PanicIsRecovered(t *testing.T) {
	g := newTestGatewayWith(t, successScript, true, nil, WithModelInvoker(panickingInvoker{}))

	status, body := g.do(t, uploadRequest(t, "image", "image/png", []byte("fake-png")))
	if status != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %v", status, body)
	}
	if body["success"] != false {
		t.Errorf("Expected failure envelope, got %v", body)
	}

	g.assertNothingStaged(t)
}

func httptestGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}
