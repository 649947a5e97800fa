package voice

import "context"

// SynthesisRequest is what a downstream text-to-speech engine receives:
// the generated markup plus the blended parameters.
type SynthesisRequest struct {
	SSML    string     `json:"ssml"`
	Params  Parameters `json:"voiceParams"`
	VoiceID string     `json:"voiceId,omitempty"`
}

// Synthesizer is implemented by speech engines that accept a SynthesisRequest.
// Nothing in this module calls one; it documents the hand-off contract.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// NewSynthesisRequest bundles markup and parameters for voiceID.
func NewSynthesisRequest(ssml string, params Parameters, voiceID string) SynthesisRequest {
	return SynthesisRequest{SSML: ssml, Params: params.clone(), VoiceID: voiceID}
}
