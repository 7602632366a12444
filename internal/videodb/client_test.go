package videodb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zap.NewNop())
}

func TestRequestsCarryAPIKeyHeader(t *testing.T) {
	t.Parallel()

	var gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		json.NewEncoder(w).Encode(map[string]string{"session_id": "cap-1"})
	})

	if _, err := c.GetCaptureSession(context.Background(), "secret-key", "cap-1"); err != nil {
		t.Fatalf("get capture session: %v", err)
	}
	if gotKey != "secret-key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
}

func TestGetCaptureSessionNotFoundIsNil(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	})

	session, err := c.GetCaptureSession(context.Background(), "k", "cap-missing")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil session, got %+v", session)
	}
}

func TestListRTStreamsSendsChannelParam(t *testing.T) {
	t.Parallel()

	var gotChannel string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotChannel = r.URL.Query().Get("channel")
		json.NewEncoder(w).Encode(map[string]any{
			"rtstreams": []map[string]string{{"id": "rts-1", "channel": "mic"}},
		})
	})

	streams, err := c.ListRTStreams(context.Background(), "k", "cap-1", ChannelMic)
	if err != nil {
		t.Fatalf("list rtstreams: %v", err)
	}
	if gotChannel != "mic" {
		t.Fatalf("expected channel=mic query param, got %q", gotChannel)
	}
	if len(streams) != 1 || streams[0].ID != "rts-1" {
		t.Fatalf("unexpected streams: %+v", streams)
	}
}

func TestStartTranscriptPostsConnectionID(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := c.StartTranscript(context.Background(), "k", "rts-1", "conn-9"); err != nil {
		t.Fatalf("start transcript: %v", err)
	}
	if gotPath != "/rtstreams/rts-1/transcript" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["ws_connection_id"] != "conn-9" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestIndexVideoReportsPlatformVerdict(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		body string
		want bool
	}{
		{"accepted", `{"success":true}`, true},
		{"rejected", `{"success":false}`, false},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			ok, err := c.IndexVideo(context.Background(), "k", "m-9")
			if err != nil {
				t.Fatalf("index video: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, ok)
			}
		})
	}
}

func TestGetTranscriptTextMissingTranscriptIsEmpty(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no transcript", http.StatusNotFound)
	})

	text, err := c.GetTranscriptText(context.Background(), "k", "m-9")
	if err != nil {
		t.Fatalf("missing transcript must not be an error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
}

func TestGenerateTextNormalizesResponseShapes(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{"bare string", `"the report"`, "the report"},
		{"output field", `{"output":"the report"}`, "the report"},
		{"text field", `{"text":"the report"}`, "the report"},
		{"nested data", `{"data":{"text":"the report"}}`, "the report"},
		{"plain body", `the report`, "the report"},
		{"padded string", `"  the report\n"`, "the report"},
		{"unrecognized object", `{"status":"ok"}`, ""},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			got, err := c.GenerateText(context.Background(), "k", "prompt", "ultra")
			if err != nil {
				t.Fatalf("generate text: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestGenerateTextSendsPromptAndModel(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"output":"ok"}`))
	})

	if _, err := c.GenerateText(context.Background(), "k", "summarize this", "ultra"); err != nil {
		t.Fatalf("generate text: %v", err)
	}
	if gotBody["prompt"] != "summarize this" || gotBody["model_name"] != "ultra" {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
}

func TestServerErrorsSurfaceStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	})

	if _, err := c.GetCaptureSession(context.Background(), "k", "cap-1"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
