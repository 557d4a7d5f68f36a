package backend

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

	"github.com/sha1n/relic-search/internal/domain"
)

// SolrBackend talks to a Solr core over its JSON select and update handlers.
type SolrBackend struct {
	baseURL string
	client  *http.Client
}

var _ Backend = (*SolrBackend)(nil)

// NewSolr creates a client for the core at baseURL, e.g. http://localhost:8983/solr/relic.
func NewSolr(baseURL string, opts Options) *SolrBackend {
	return NewSolrWithClient(baseURL, &http.Client{Timeout: opts.timeout()})
}

// NewSolrWithClient creates a client using the given HTTP client.
func NewSolrWithClient(baseURL string, client *http.Client) *SolrBackend {
	return &SolrBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type solrResponseHeader struct {
	Status int `json:"status"`
}

type solrError struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

type solrSelectResponse struct {
	ResponseHeader solrResponseHeader `json:"responseHeader"`
	Response       struct {
		NumFound uint64           `json:"numFound"`
		Start    int              `json:"start"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	Error *solrError `json:"error,omitempty"`
}

type solrUpdateResponse struct {
	ResponseHeader solrResponseHeader `json:"responseHeader"`
	Error          *solrError         `json:"error,omitempty"`
}

// Search implements Backend. Query uses the Solr standard query syntax.
func (s *SolrBackend) Search(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("wt", "json")
	q := req.Query
	if q == "" {
		q = "*:*"
	}
	params.Set("q", q)
	for _, f := range req.Filters {
		params.Add("fq", f.Field+":"+quoteSolr(f.Value))
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = storedFields
	}
	params.Set("fl", strings.Join(withID(fields), ","))
	params.Set("rows", strconv.Itoa(limitOrDefault(req.Limit)))
	params.Set("start", strconv.Itoa(req.Offset))
	if req.Sort != nil {
		dir := "asc"
		if req.Sort.Descending {
			dir = "desc"
		}
		params.Set("sort", req.Sort.Field+" "+dir)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/select?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	var resp solrSelectResponse
	status, err := s.do(httpReq, &resp)
	if err != nil {
		return nil, err
	}
	if err := responseError(status, resp.ResponseHeader, resp.Error); err != nil {
		return nil, err
	}

	result := &Result{HitCount: resp.Response.NumFound, Documents: make([]Hit, 0, len(resp.Response.Docs))}
	for _, doc := range resp.Response.Docs {
		hit := Hit{Fields: make(map[string]string, len(doc))}
		for k, v := range doc {
			if str, ok := fieldString(v); ok {
				hit.Fields[k] = str
			}
		}
		hit.ID = hit.Fields[domain.FieldID]
		result.Documents = append(result.Documents, hit)
	}
	return result, nil
}

// Add implements Backend with a single JSON update request. Solr replaces
// documents sharing the id unique key.
func (s *SolrBackend) Add(ctx context.Context, docs ...domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	payload := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		fields := documentFields(doc)
		fields[domain.FieldTimestamp] = doc.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z")
		payload = append(payload, fields)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}
	return s.update(ctx, url.Values{}, body)
}

// Commit implements Backend by issuing an optimize, which commits first.
func (s *SolrBackend) Commit(ctx context.Context) error {
	params := url.Values{}
	params.Set("optimize", "true")
	return s.update(ctx, params, []byte("{}"))
}

// Close implements Backend.
func (s *SolrBackend) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SolrBackend) update(ctx context.Context, params url.Values, body []byte) error {
	params.Set("wt", "json")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/update?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp solrUpdateResponse
	status, err := s.do(httpReq, &resp)
	if err != nil {
		return err
	}
	return responseError(status, resp.ResponseHeader, resp.Error)
}

// do executes req and decodes the JSON body into out. A body that is not
// JSON is reported by HTTP status.
func (s *SolrBackend) do(req *http.Request, out any) (int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("solr request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read solr response: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return resp.StatusCode, fmt.Errorf("solr returned %s", resp.Status)
		}
		return resp.StatusCode, fmt.Errorf("failed to decode solr response: %w", err)
	}
	return resp.StatusCode, nil
}

func responseError(status int, header solrResponseHeader, e *solrError) error {
	switch {
	case e != nil:
		return fmt.Errorf("solr error %d: %s", e.Code, e.Msg)
	case header.Status != 0:
		return fmt.Errorf("solr status %d", header.Status)
	case status >= http.StatusBadRequest:
		return fmt.Errorf("solr returned HTTP %d", status)
	}
	return nil
}

// quoteSolr quotes a value as a Solr phrase.
func quoteSolr(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func withID(fields []string) []string {
	for _, f := range fields {
		if f == domain.FieldID {
			return fields
		}
	}
	return append([]string{domain.FieldID}, fields...)
}
