package elevenlabs

import "github.com/book-expert/tts-batch/internal/config"

// synthesizeRequest is the JSON body for a text-to-speech request. Model v3
// accepts only the Stability voice-setting field; all other fields are
// omitted for that model.
type synthesizeRequest struct {
	Text         string            `json:"text"`
	ModelID      string            `json:"model_id"`
	VoiceSetting voiceSettingsBody `json:"voice_settings"`
	LanguageCode string            `json:"language_code,omitempty"`
}

// voiceSettingsBody's non-v3 fields are pointers so that a legitimate zero
// value (0.0 similarity/style, a false speaker-boost) still serializes for
// non-v3 models; presence is gated explicitly on the model in
// buildRequestBody rather than on whether the value happens to be zero.
type voiceSettingsBody struct {
	Stability       float64  `json:"stability"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost,omitempty"`
}

func buildRequestBody(voice config.VoiceSettings, text string) synthesizeRequest {
	req := synthesizeRequest{
		Text:         text,
		ModelID:      voice.ModelID,
		LanguageCode: voice.LanguageCode,
		VoiceSetting: voiceSettingsBody{
			Stability: voice.Stability,
		},
	}

	if !voice.IsV3() {
		req.VoiceSetting.SimilarityBoost = &voice.SimilarityBoost
		req.VoiceSetting.Style = &voice.Style
		req.VoiceSetting.UseSpeakerBoost = &voice.SpeakerBoost
	}

	return req
}
