package googletts

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/harunnryd/sampark/pkg/adapters/tts"
	"google.golang.org/api/option"
)

type Config struct {
	CredentialsFile string
	SpeakingRate    float64
}

type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleTTS synthesizes prompts with Cloud Text-to-Speech.
type GoogleTTS struct {
	cfg    Config
	client speechClient
}

func New(ctx context.Context, cfg Config) (*GoogleTTS, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleTTS{cfg: cfg, client: clientAdapter{client}}, nil
}

type clientAdapter struct {
	c *texttospeech.Client
}

func (a clientAdapter) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return a.c.SynthesizeSpeech(ctx, req)
}

func (a clientAdapter) Close() error { return a.c.Close() }

func (g *GoogleTTS) Name() string { return "google_tts" }

func (g *GoogleTTS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}
	if voice.LanguageCode == "" {
		voice = tts.DefaultVoice
	}
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: voice.LanguageCode,
			Name:         voice.Name,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: audioEncoding(voice.Encoding),
			SpeakingRate:  g.cfg.SpeakingRate,
		},
	}
	slog.Debug("google_tts_request", "voice", voice.Name, "chars", len([]rune(text)))
	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.GetAudioContent(), nil
}

func audioEncoding(v string) texttospeechpb.AudioEncoding {
	switch strings.ToLower(v) {
	case "wav", "linear16":
		return texttospeechpb.AudioEncoding_LINEAR16
	case "ogg", "ogg_opus":
		return texttospeechpb.AudioEncoding_OGG_OPUS
	default:
		return texttospeechpb.AudioEncoding_MP3
	}
}
