package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type EvolutionConfig struct {
	BaseURL  string
	Instance string
	APIKey   string
	Timeout  time.Duration
}

// EvolutionClient sends WhatsApp text messages through an Evolution API instance.
type EvolutionClient struct {
	cfg    EvolutionConfig
	client *http.Client
}

func NewEvolutionClient(cfg EvolutionConfig) *EvolutionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &EvolutionClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type sendTextRequest struct {
	Number      string `json:"number"`
	Text        string `json:"text"`
	Delay       int    `json:"delay"`
	LinkPreview bool   `json:"linkPreview"`
}

func (c *EvolutionClient) Send(ctx context.Context, phone, text string) error {
	number, err := NormalizePhone(phone)
	if err != nil {
		return fmt.Errorf("%w: %q", err, phone)
	}

	body, err := json.Marshal(sendTextRequest{Number: number, Text: text, Delay: 1200})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.cfg.BaseURL, c.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("%w: %s: %s", ErrDeliveryFailed, resp.Status, strings.TrimSpace(string(slurp)))
}
