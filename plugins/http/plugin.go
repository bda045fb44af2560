// Package http serves HTTP task integrations: arn:aws:states:::http:invoke
// endpoints and Lambda functions hosted behind a URL.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BDNK1/sfnsim/runtime/plugin"
	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"
)

const statusErrorPrefix = "States.Http.StatusCode."

// Config holds the client settings shared by Endpoint and RemoteFunction.
// Retries default to zero so that Retry blocks in the definition stay the
// only retry policy.
type Config struct {
	BaseURL     string            `yaml:"base_url" validate:"omitempty,url_format"`
	Headers     map[string]string `yaml:"headers"`
	Timeout     time.Duration     `yaml:"timeout" default:"30s" validate:"gte=1ms"`
	MaxRetries  int               `yaml:"max_retries" default:"0" validate:"gte=0,lte=10"`
	RetryWaitMS int               `yaml:"retry_wait_ms" default:"100" validate:"gte=0,lte=10000"`
	Debug       bool              `yaml:"debug" default:"false"`
}

// transport builds the resty client once, on Initialize or first use.
type transport struct {
	once   sync.Once
	client *resty.Client
}

func (t *transport) get(config Config) *resty.Client {
	t.once.Do(func() {
		t.client = resty.New().
			SetTimeout(config.Timeout).
			SetRetryCount(config.MaxRetries).
			SetRetryWaitTime(time.Duration(config.RetryWaitMS) * time.Millisecond).
			SetDebug(config.Debug)
		if config.BaseURL != "" {
			t.client.SetBaseURL(config.BaseURL)
		}
		if len(config.Headers) > 0 {
			t.client.SetHeaders(config.Headers)
		}
	})
	return t.client
}

func (t *transport) close() {
	if t.client != nil {
		t.client.GetClient().CloseIdleConnections()
	}
}

// Endpoint is the connection an http:invoke task reaches. Its name is the
// connection name in Authentication.ConnectionArn, or "default".
type Endpoint struct {
	Name   string
	Config Config

	transport transport
}

var (
	_ plugin.Invoker     = (*Endpoint)(nil)
	_ plugin.Initializer = (*Endpoint)(nil)
	_ plugin.Shutdowner  = (*Endpoint)(nil)
)

func (h *Endpoint) Service() string      { return plugin.ServiceHTTP }
func (h *Endpoint) ResourceName() string { return h.Name }

func (h *Endpoint) Initialize(context.Context) error {
	h.transport.get(h.Config)
	return nil
}

func (h *Endpoint) Shutdown(context.Context) error {
	h.transport.close()
	return nil
}

type invokeInput struct {
	ApiEndpoint     string         `json:"ApiEndpoint" validate:"required"`
	Method          string         `json:"Method" validate:"required"`
	Headers         map[string]any `json:"Headers"`
	QueryParameters map[string]any `json:"QueryParameters"`
	RequestBody     any            `json:"RequestBody"`
}

// Invoke sends the request described by input. Non-2xx responses fail with
// States.Http.StatusCode.<code> and the response body as cause.
func (h *Endpoint) Invoke(ctx context.Context, method string, input any) (any, error) {
	in, err := plugin.DecodeInput[invokeInput](input, "http:invoke")
	if err != nil {
		return nil, err
	}

	req := h.transport.get(h.Config).R().
		SetContext(ctx).
		SetHeaders(plugin.ToStringValueMap(in.Headers)).
		SetQueryParams(plugin.ToStringValueMap(in.QueryParameters))
	if in.RequestBody != nil {
		req.SetBody(in.RequestBody)
	}

	resp, err := req.Execute(strings.ToUpper(method), in.ApiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s failed: %w", in.ApiEndpoint, err)
	}
	if resp.IsError() {
		return nil, plugin.NewError(statusErrorPrefix+strconv.Itoa(resp.StatusCode()), resp.String())
	}

	return map[string]any{
		"StatusCode":   resp.StatusCode(),
		"StatusText":   http.StatusText(resp.StatusCode()),
		"Headers":      flattenHeaders(resp.Header()),
		"ResponseBody": decodeBody(resp.Body()),
	}, nil
}

// RemoteFunction is a Lambda function served over HTTP. The payload is POSTed
// as JSON and the decoded response body is the function result.
type RemoteFunction struct {
	Name   string
	URL    string
	Config Config

	transport transport
}

var _ plugin.Invoker = (*RemoteFunction)(nil)

func (f *RemoteFunction) Service() string      { return plugin.ServiceLambda }
func (f *RemoteFunction) ResourceName() string { return f.Name }

func (f *RemoteFunction) Initialize(context.Context) error {
	if f.URL == "" {
		return fmt.Errorf("function %s has no url", f.Name)
	}
	f.transport.get(f.Config)
	return nil
}

func (f *RemoteFunction) Shutdown(context.Context) error {
	f.transport.close()
	return nil
}

// Invoke calls the function. An error response shaped like a Lambda error,
// {"errorType", "errorMessage"}, fails with errorType as the error name.
func (f *RemoteFunction) Invoke(ctx context.Context, _ string, input any) (any, error) {
	resp, err := f.transport.get(f.Config).R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(input).
		Post(f.URL)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.Name, err)
	}

	result := decodeBody(resp.Body())
	if resp.IsError() {
		return nil, functionError(f.Name, resp, result)
	}
	return result, nil
}

func functionError(name string, resp *resty.Response, body any) error {
	if m, ok := body.(map[string]any); ok {
		if errorType, ok := m["errorType"].(string); ok && errorType != "" {
			message, _ := m["errorMessage"].(string)
			return plugin.NewError(errorType, message)
		}
	}
	return plugin.NewTaskFailed("Lambda function [%s] returned %s: %s", name, resp.Status(), resp.String())
}

// decodeBody returns the JSON value of body, or body as a string when it is
// not JSON. An empty body is nil.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return string(body)
	}
	return parsed.Data()
}

func flattenHeaders(header http.Header) map[string]any {
	result := make(map[string]any, len(header))
	for key, values := range header {
		result[key] = strings.Join(values, ", ")
	}
	return result
}
