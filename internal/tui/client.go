package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/mealtime/internal/controlplane"
	"github.com/fentz26/mealtime/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Mealtime daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ApplyResult is the body of POST /apply.
type ApplyResult struct {
	Armed   int    `json:"armed"`
	Warning string `json:"warning,omitempty"`
}

// ListReminders fetches active reminders, optionally filtered by status.
func (c *Client) ListReminders(status string) ([]models.Reminder, error) {
	path := "/reminders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []models.Reminder
	if err := c.get(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History fetches past reminders, newest first.
func (c *Client) History(limit int) ([]models.Reminder, error) {
	var out []models.Reminder
	if err := c.get("/history?limit="+strconv.Itoa(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the engine summary.
func (c *Client) Status() (*controlplane.Status, error) {
	var out controlplane.Status
	if err := c.get("/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Log fetches audit transitions for a reminder.
func (c *Client) Log(reminderID string, limit int) ([]models.Transition, error) {
	q := url.Values{}
	if reminderID != "" {
		q.Set("reminder_id", reminderID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.Transition
	if err := c.get("/log?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ack sends a user answer for a reminder and returns the daemon's verdict
// ("acknowledged" or "ignored").
func (c *Client) Ack(id string, action models.AckAction, snoozeMinutes int) (string, error) {
	req := map[string]interface{}{"action": action}
	if snoozeMinutes > 0 {
		req["snooze_minutes"] = snoozeMinutes
	}
	var out map[string]string
	if err := c.post("/reminders/"+url.PathEscape(id)+"/ack", req, &out); err != nil {
		return "", err
	}
	return out["status"], nil
}

// Apply asks the daemon to re-read settings and re-arm reminders.
func (c *Client) Apply() (*ApplyResult, error) {
	var out ApplyResult
	if err := c.post("/apply", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel disarms every active reminder.
func (c *Client) Cancel() error {
	return c.post("/cancel", nil, nil)
}

// Healthy reports whether the daemon answers /health with ok.
func (c *Client) Healthy() bool {
	var out controlplane.HealthResponse
	if err := c.get("/health", &out); err != nil {
		return false
	}
	return out.OK
}

func (c *Client) get(path string, v interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, v)
}

func (c *Client) post(path string, body, v interface{}) error {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", r)
	if err != nil {
		return err
	}
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
