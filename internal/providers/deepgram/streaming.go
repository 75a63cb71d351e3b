package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"kidintake/internal/domain"
)

const sendChunkSize = 8192

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider transcribes clips through the Deepgram listen websocket.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Transcribe streams one containerized clip over a fresh connection and
// joins the final segments. The clip is written on the calling goroutine
// while a reader collects results until Deepgram closes the stream.
func (p *Provider) Transcribe(ctx context.Context, blob domain.AudioBlob) (string, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	results := make(chan listenResult, 1)
	go func() { results <- readFinals(conn) }()

	if err := sendClip(conn, blob.Data); err != nil {
		_ = conn.Close()
		<-results
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionUnavailable, err)
	}

	result := <-results
	if ctx.Err() != nil && len(result.finals) == 0 {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionUnavailable, ctx.Err())
	}
	if result.err != nil && len(result.finals) == 0 {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionUnavailable, result.err)
	}
	return strings.Join(result.finals, " "), nil
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(p.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	return conn, nil
}

func sendClip(conn *websocket.Conn, data []byte) error {
	for offset := 0; offset < len(data); offset += sendChunkSize {
		end := min(offset+sendChunkSize, len(data))
		if err := conn.WriteMessage(websocket.BinaryMessage, data[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

type listenResult struct {
	finals []string
	err    error
}

// readFinals collects final transcripts until the connection ends. A normal
// close from Deepgram is not an error.
func readFinals(conn *websocket.Conn) listenResult {
	var result listenResult
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			result.err = readErr(err)
			return result
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			result.err = errors.New(message)
			return result
		}

		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		if transcript := extractTranscript(response); transcript != "" {
			result.finals = append(result.finals, transcript)
		}
	}
}

func readErr(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return nil
	}
	return fmt.Errorf("failed to read provider event: %w", err)
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
	}
	return ""
}

// buildListenURL leaves encoding and sample rate unset: clips carry a WAV
// header that Deepgram reads itself.
func buildListenURL(providerCfg Config) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("interim_results", "false")
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
