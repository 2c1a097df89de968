package authform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/bytedance/sonic"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultBaseURL = "http://localhost:8080"

	MessageRegistered = "Registered Successfully!"
	MessageLoggedIn   = "Logged in Successfully!"
	MessageFailed     = "An error occurred. Please try again."
)

// ErrSubmissionFailed covers every failed attempt: transport errors, bad
// request construction and response bodies that are not JSON.
var ErrSubmissionFailed = errors.New("submission failed")

// Doer sends a single HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier receives the user-facing acknowledgement of a submission.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, outcome Outcome)

func (f NotifierFunc) Notify(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// Outcome is what the user is told after a submission.
type Outcome struct {
	OK       bool
	Message  string
	Endpoint string
	// Response is the decoded response body on success.
	Response any
}

// Submitter posts form state to the backend. It holds no per-submission
// state, so concurrent calls are independent.
type Submitter struct {
	client  Doer
	baseURL string
}

type SubmitterOption func(*Submitter)

// WithDoer replaces the HTTP client.
func WithDoer(d Doer) SubmitterOption {
	return func(s *Submitter) {
		s.client = d
	}
}

// WithBaseURL points the submitter at another backend. The login and
// register paths are appended to it.
func WithBaseURL(u string) SubmitterOption {
	return func(s *Submitter) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

func NewSubmitter(opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		// no timeout: a submission is a single best-effort attempt
		client:  &http.Client{},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.baseURL == "" {
		s.baseURL = DefaultBaseURL
	}
	return s
}

// Endpoint returns the URL a submission in mode m is sent to.
func (s *Submitter) Endpoint(m Mode) string {
	if m == Register {
		return s.baseURL + "/register"
	}
	return s.baseURL + "/login"
}

// Submit posts state as JSON to the endpoint for mode. Any JSON response
// counts as success regardless of status code. The returned Outcome is
// always usable for notifying the user, and err wraps ErrSubmissionFailed
// when the attempt failed.
func (s *Submitter) Submit(ctx context.Context, state State, mode Mode) (Outcome, error) {
	endpoint := s.Endpoint(mode)

	result, err := s.post(ctx, endpoint, state)
	if err != nil {
		fiberlog.Error("Error: ", err)
		return Outcome{OK: false, Message: MessageFailed, Endpoint: endpoint},
			fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	fiberlog.Info("submission response: ", result)

	msg := MessageLoggedIn
	if mode == Register {
		msg = MessageRegistered
	}
	return Outcome{OK: true, Message: msg, Endpoint: endpoint, Response: result}, nil
}

// SubmitAndNotify runs Submit and hands the outcome to n.
func (s *Submitter) SubmitAndNotify(ctx context.Context, state State, mode Mode, n Notifier) error {
	outcome, err := s.Submit(ctx, state, mode)
	n.Notify(ctx, outcome)
	return err
}

func (s *Submitter) post(ctx context.Context, endpoint string, state State) (any, error) {
	body, err := sonic.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result any
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return result, nil
}
