package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
)

// CaptchaSolver is the external solving collaborator. Solve returns
// the cost incurred whether or not the solve succeeded, so spend
// tracking stays honest.
type CaptchaSolver interface {
	Solve(ctx context.Context, page *rod.Page, siteKey, pageURL string) (cost float64, err error)
}

// NoSolver is the default: CAPTCHAs are reported, never solved.
type NoSolver struct{}

// Solve always fails with zero cost.
func (NoSolver) Solve(ctx context.Context, page *rod.Page, siteKey, pageURL string) (float64, error) {
	return 0, fmt.Errorf("no captcha solver configured")
}

// APISolver submits challenges to a token-solving service and injects
// the returned token into the page.
type APISolver struct {
	apiKey   string
	costEach float64
	endpoint string
	client   *http.Client
}

// NewAPISolver creates a solver client. costEach is the billed price
// per solve attempt.
func NewAPISolver(apiKey string, costEach float64) *APISolver {
	return &APISolver{
		apiKey:   apiKey,
		costEach: costEach,
		endpoint: "https://api.2captcha.com/createTask",
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type solverTask struct {
	ClientKey string `json:"clientKey"`
	Task      struct {
		Type       string `json:"type"`
		WebsiteURL string `json:"websiteURL"`
		WebsiteKey string `json:"websiteKey"`
	} `json:"task"`
}

type solverResponse struct {
	ErrorID  int `json:"errorId"`
	Solution struct {
		Token string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

// Solve submits the sitekey and injects the solution token.
func (s *APISolver) Solve(ctx context.Context, page *rod.Page, siteKey, pageURL string) (float64, error) {
	task := solverTask{ClientKey: s.apiKey}
	task.Task.Type = "RecaptchaV2TaskProxyless"
	task.Task.WebsiteURL = pageURL
	task.Task.WebsiteKey = siteKey

	payload, err := json.Marshal(task)
	if err != nil {
		return 0, fmt.Errorf("marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return s.costEach, fmt.Errorf("submit challenge: %w", err)
	}
	defer resp.Body.Close()

	var solved solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&solved); err != nil {
		return s.costEach, fmt.Errorf("decode solver response: %w", err)
	}
	if solved.ErrorID != 0 || solved.Solution.Token == "" {
		return s.costEach, fmt.Errorf("solver error id %d", solved.ErrorID)
	}

	// Inject the token where the challenge script expects it.
	js := fmt.Sprintf(`() => {
		const el = document.getElementById('g-recaptcha-response');
		if (el) { el.innerHTML = %q; }
	}`, solved.Solution.Token)
	if _, err := page.Eval(js); err != nil {
		return s.costEach, fmt.Errorf("inject token: %w", err)
	}
	return s.costEach, nil
}
