package googletts

import (
	"context"
	"testing"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/harunnryd/sampark/pkg/adapters/tts"
)

type stubClient struct {
	last *texttospeechpb.SynthesizeSpeechRequest
}

func (s *stubClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	s.last = req
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3")}, nil
}

func (s *stubClient) Close() error { return nil }

func TestSynthesizeBuildsGujaratiRequest(t *testing.T) {
	stub := &stubClient{}
	g := &GoogleTTS{client: stub}
	audio, err := g.Synthesize(context.Background(), "નમસ્તે", tts.Voice{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if stub.last.GetVoice().GetLanguageCode() != "gu-IN" || stub.last.GetVoice().GetName() != "gu-IN-Standard-A" {
		t.Fatalf("unexpected voice %+v", stub.last.GetVoice())
	}
	if stub.last.GetAudioConfig().GetAudioEncoding() != texttospeechpb.AudioEncoding_MP3 {
		t.Fatalf("expected mp3 encoding")
	}
	if stub.last.GetInput().GetText() != "નમસ્તે" {
		t.Fatalf("unexpected input text")
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	g := &GoogleTTS{client: &stubClient{}}
	if _, err := g.Synthesize(context.Background(), "  ", tts.DefaultVoice); err == nil {
		t.Fatalf("expected error")
	}
}
