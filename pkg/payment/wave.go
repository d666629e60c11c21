package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WaveConfig holds the Wave checkout API settings.
type WaveConfig struct {
	APIKey     string        `env:"WAVE_API_KEY,required"`
	BaseURL    string        `env:"WAVE_BASE_URL" envDefault:"https://api.wave.com"`
	SuccessURL string        `env:"WAVE_SUCCESS_URL,required"`
	ErrorURL   string        `env:"WAVE_ERROR_URL,required"`
	Timeout    time.Duration `env:"WAVE_TIMEOUT" envDefault:"15s"`
}

// WaveGateway opens hosted checkout sessions on the Wave API.
type WaveGateway struct {
	cfg    WaveConfig
	client *http.Client
}

// NewWaveGateway creates a Wave checkout client.
func NewWaveGateway(cfg WaveConfig) *WaveGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WaveGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type waveCheckoutRequest struct {
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ClientReference string `json:"client_reference"`
	SuccessURL      string `json:"success_url"`
	ErrorURL        string `json:"error_url"`
}

type waveCheckoutResponse struct {
	ID            string `json:"id"`
	WaveLaunchURL string `json:"wave_launch_url"`
}

func (g *WaveGateway) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	body, err := json.Marshal(waveCheckoutRequest{
		Amount:          params.Amount.String(),
		Currency:        params.Currency,
		ClientReference: params.ClientReference,
		SuccessURL:      g.cfg.SuccessURL,
		ErrorURL:        g.cfg.ErrorURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encode checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGatewayFailed, resp.StatusCode, detail)
	}

	var out waveCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if out.ID == "" || out.WaveLaunchURL == "" {
		return nil, fmt.Errorf("%w: incomplete checkout session", ErrGatewayFailed)
	}

	return &Checkout{Reference: out.ID, CheckoutURL: out.WaveLaunchURL}, nil
}
