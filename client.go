package plm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// AccountHeader carries the caller identity on mutating requests.
const AccountHeader = "X-PLM-Account"

// APIError is a non 2xx response of the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plm: %d %s", e.StatusCode, e.Detail)
}

type Part struct {
	Code        string     `json:"codice"`
	Description string     `json:"descrizione"`
	Quantity    float64    `json:"quantita"`
	Location    string     `json:"ubicazione"`
	CreatedAt   time.Time  `json:"created_at"`
	Revisions   []Revision `json:"revisioni,omitempty"`
}

type Revision struct {
	Index      int        `json:"indice"`
	State      string     `json:"stato"`
	Color      string     `json:"color"`
	CadFile    *string    `json:"cad_file"`
	IsReleased bool       `json:"is_released"`
	ReleasedAt *time.Time `json:"released_at"`
}

type CreatePartRequest struct {
	Type        string  `json:"codice"`
	Description string  `json:"descrizione"`
	Quantity    float64 `json:"quantita"`
	Location    string  `json:"ubicazione"`
	State       string  `json:"stato,omitempty"`
	ReleaseNow  bool    `json:"rilascia_subito"`
}

type CreateRevisionRequest struct {
	Code    string  `json:"codice"`
	Index   *int    `json:"indice,omitempty"`
	State   string  `json:"stato,omitempty"`
	CadFile *string `json:"cad_file,omitempty"`
}

type Component struct {
	Code        string  `json:"figlio"`
	Description string  `json:"descrizione"`
	Quantity    float64 `json:"quantita"`
}

type MergeResult struct {
	Message  string  `json:"msg"`
	Quantity float64 `json:"quantita"`
	Action   string  `json:"azione"`
}

type State struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// BomNode is one node of an expanded bill of materials. Cycle marks a code
// that already appears among its ancestors; such nodes are not expanded.
type BomNode struct {
	Code        string     `json:"codice"`
	Description string     `json:"descrizione"`
	Quantity    float64    `json:"quantita"`
	Cycle       bool       `json:"ciclo,omitempty"`
	Children    []*BomNode `json:"figli,omitempty"`
}

type Option func(*Client)

// WithAccount sets the account sent on mutating requests.
func WithAccount(facility, group, account string) Option {
	return func(c *Client) {
		c.account = strings.Join([]string{facility, group, account}, "|")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// Client talks to a PLM server over HTTP.
type Client struct {
	baseURL string
	account string
	http    *http.Client
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) CreatePart(ctx context.Context, req CreatePartRequest) (*Part, error) {
	var part Part
	if err := c.do(ctx, http.MethodPost, "/codici/", nil, req, &part); err != nil {
		return nil, err
	}

	return &part, nil
}

func (c *Client) ListParts(ctx context.Context, includeUnreleased bool) ([]Part, error) {
	var parts []Part
	query := url.Values{"include_unreleased": {strconv.FormatBool(includeUnreleased)}}
	if err := c.do(ctx, http.MethodGet, "/codici/", query, nil, &parts); err != nil {
		return nil, err
	}

	return parts, nil
}

func (c *Client) GetPart(ctx context.Context, code string, includeUnreleased bool) (*Part, error) {
	var part Part
	query := url.Values{"include_unreleased": {strconv.FormatBool(includeUnreleased)}}
	if err := c.do(ctx, http.MethodGet, "/codici/"+url.PathEscape(code)+"/dettaglio", query, nil, &part); err != nil {
		return nil, err
	}

	return &part, nil
}

func (c *Client) CreateRevision(ctx context.Context, req CreateRevisionRequest) (*Revision, error) {
	var rev Revision
	if err := c.do(ctx, http.MethodPost, "/revisioni/", nil, req, &rev); err != nil {
		return nil, err
	}

	return &rev, nil
}

func (c *Client) ReleaseRevision(ctx context.Context, code string, index int) (*Revision, error) {
	var rev Revision
	if err := c.do(ctx, http.MethodPost, revisionPath(code, index)+"/rilascio", nil, nil, &rev); err != nil {
		return nil, err
	}

	return &rev, nil
}

func (c *Client) ChangeState(ctx context.Context, code string, index int, state string) (*Revision, error) {
	var rev Revision
	body := map[string]string{"stato": state}
	if err := c.do(ctx, http.MethodPost, revisionPath(code, index)+"/stato", nil, body, &rev); err != nil {
		return nil, err
	}

	return &rev, nil
}

// MergeComponent adds quantity (possibly negative) of child to parent.
func (c *Client) MergeComponent(ctx context.Context, parent, child string, quantity float64) (*MergeResult, error) {
	var result MergeResult
	query := url.Values{
		"padre":    {parent},
		"figlio":   {child},
		"quantita": {strconv.FormatFloat(quantity, 'f', -1, 64)},
	}
	if err := c.do(ctx, http.MethodPost, "/distinte/", query, nil, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Components returns the direct children of a part.
func (c *Client) Components(ctx context.Context, code string) ([]Component, error) {
	var components []Component
	if err := c.do(ctx, http.MethodGet, "/distinte/"+url.PathEscape(code), nil, nil, &components); err != nil {
		return nil, err
	}

	return components, nil
}

func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.do(ctx, http.MethodGet, "/stati/", nil, nil, &states); err != nil {
		return nil, err
	}

	return states, nil
}

// CreateAccount registers an account; it needs no account header.
func (c *Client) CreateAccount(ctx context.Context, account, password string) error {
	body := map[string]string{"account": account, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/accounts", nil, body, nil)
}

// ExpandBOM walks the BOM below code with one Components call per node. A code
// already on the path from the root is reported as a cycle instead of being
// expanded again.
func (c *Client) ExpandBOM(ctx context.Context, code string) (*BomNode, error) {
	root := &BomNode{Code: code, Quantity: 1}
	if err := c.expand(ctx, root, mapset.NewThreadUnsafeSet[string]()); err != nil {
		return nil, err
	}

	return root, nil
}

func (c *Client) expand(ctx context.Context, node *BomNode, path mapset.Set[string]) error {
	if path.Contains(node.Code) {
		node.Cycle = true
		return nil
	}
	path.Add(node.Code)
	defer path.Remove(node.Code)

	components, err := c.Components(ctx, node.Code)
	if err != nil {
		return err
	}

	for _, component := range components {
		child := &BomNode{Code: component.Code, Description: component.Description, Quantity: component.Quantity}
		if err := c.expand(ctx, child, path); err != nil {
			return err
		}
		node.Children = append(node.Children, child)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.account != "" && method != http.MethodGet {
		req.Header.Set(AccountHeader, c.account)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Detail = payload.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func revisionPath(code string, index int) string {
	return fmt.Sprintf("/revisioni/%s/%d", url.PathEscape(code), index)
}
