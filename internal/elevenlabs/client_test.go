package elevenlabs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/tts-batch/internal/config"
	"github.com/book-expert/tts-batch/internal/credential"
	"github.com/book-expert/tts-batch/internal/elevenlabs"
)

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	client := elevenlabs.NewClient(5*time.Second, 2)

	res := client.Synthesize(context.Background(), config.VoiceSettings{VoiceID: "v1"}, "", credential.Credential{Value: "sk_x"}, nil)
	if res.Kind != elevenlabs.KindPermanentFailure {
		t.Fatalf("expected KindPermanentFailure for empty text, got %v", res.Kind)
	}
}

func TestSynthesizeRejectsMissingVoiceID(t *testing.T) {
	client := elevenlabs.NewClient(5*time.Second, 2)

	res := client.Synthesize(context.Background(), config.VoiceSettings{}, "hello", credential.Credential{Value: "sk_x"}, nil)
	if res.Kind != elevenlabs.KindPermanentFailure {
		t.Fatalf("expected KindPermanentFailure for missing voice id, got %v", res.Kind)
	}
}

func TestSynthesizeClassifiesSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "sk_test" {
			t.Errorf("expected xi-api-key header, got %q", r.Header.Get("xi-api-key"))
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("AUDIOBYTES"))
	}))
	defer server.Close()

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

	res := client.Synthesize(
		context.Background(),
		config.VoiceSettings{VoiceID: "v1", ModelID: config.ModelTurboV25, Stability: 0.5},
		"hello world",
		credential.Credential{Value: "sk_test"},
		nil,
	)

	if res.Kind != elevenlabs.KindOk {
		t.Fatalf("expected KindOk, got %v: %s", res.Kind, res.Reason)
	}

	if string(res.Audio) != "AUDIOBYTES" {
		t.Errorf("unexpected audio payload: %q", res.Audio)
	}
}

func TestSynthesizeClassifiesCredentialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"bad key"}}`))
	}))
	defer server.Close()

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

	res := client.Synthesize(
		context.Background(),
		config.VoiceSettings{VoiceID: "v1", ModelID: config.ModelTurboV25},
		"hello",
		credential.Credential{Value: "sk_test"},
		nil,
	)

	if res.Kind != elevenlabs.KindCredentialFailure {
		t.Fatalf("expected KindCredentialFailure, got %v", res.Kind)
	}
}

func TestSynthesizeClassifiesQuotaErrorAsCredentialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":{"status":"quota_exceeded","message":"not enough credit"}}`))
	}))
	defer server.Close()

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

	res := client.Synthesize(
		context.Background(),
		config.VoiceSettings{VoiceID: "v1", ModelID: config.ModelTurboV25},
		"hello",
		credential.Credential{Value: "sk_test"},
		nil,
	)

	if res.Kind != elevenlabs.KindCredentialFailure {
		t.Fatalf("expected KindCredentialFailure for quota_exceeded, got %v", res.Kind)
	}
}

func TestSynthesizeClassifiesTransientFailureOn429And5xx(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		status := status

		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

			res := client.Synthesize(
				context.Background(),
				config.VoiceSettings{VoiceID: "v1", ModelID: config.ModelTurboV25},
				"hello",
				credential.Credential{Value: "sk_test"},
				nil,
			)

			if res.Kind != elevenlabs.KindTransientFailure {
				t.Fatalf("expected KindTransientFailure for %d, got %v", status, res.Kind)
			}
		})
	}
}

func TestSynthesizeClassifiesOtherFourXXAsPermanentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

	res := client.Synthesize(
		context.Background(),
		config.VoiceSettings{VoiceID: "v1", ModelID: config.ModelTurboV25},
		"hello",
		credential.Credential{Value: "sk_test"},
		nil,
	)

	if res.Kind != elevenlabs.KindPermanentFailure {
		t.Fatalf("expected KindPermanentFailure, got %v", res.Kind)
	}
}

func TestSynthesizeV3OmitsExtraVoiceFields(t *testing.T) {
	var captured string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		captured = string(buf[:n])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("X"))
	}))
	defer server.Close()

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

	_ = client.Synthesize(
		context.Background(),
		config.VoiceSettings{VoiceID: "v1", ModelID: config.ModelV3, Stability: 0.5, SimilarityBoost: 0.8},
		"hello",
		credential.Credential{Value: "sk_test"},
		nil,
	)

	if containsAny(captured, "similarity_boost", "use_speaker_boost") {
		t.Errorf("v3 request body must omit similarity_boost/use_speaker_boost, got %s", captured)
	}
}

func TestSynthesizeNonV3SendsFalseSpeakerBoostAndZeroFields(t *testing.T) {
	var captured string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		captured = string(buf[:n])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("X"))
	}))
	defer server.Close()

	client := elevenlabs.NewClientWithBaseURL(server.URL, 5*time.Second, 2)

	_ = client.Synthesize(
		context.Background(),
		config.VoiceSettings{
			VoiceID:         "v1",
			ModelID:         config.ModelTurboV25,
			Stability:       0.5,
			SimilarityBoost: 0,
			Style:           0,
			SpeakerBoost:    false,
		},
		"hello",
		credential.Credential{Value: "sk_test"},
		nil,
	)

	if !containsAny(captured, `"similarity_boost":0`) {
		t.Errorf("non-v3 request body must send a zero similarity_boost explicitly, got %s", captured)
	}

	if !containsAny(captured, `"use_speaker_boost":false`) {
		t.Errorf("non-v3 request body must send use_speaker_boost:false explicitly, got %s", captured)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(sub) > 0 && stringsContains(s, sub) {
			return true
		}
	}

	return false
}

func stringsContains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}

	return false
}
