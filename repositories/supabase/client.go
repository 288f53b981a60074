package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
)

// Config configures the Supabase REST datastore
type Config struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
	// Functions maps embedding model names to RPC function names
	Functions map[string]string
}

// Client searches chunks through PostgREST RPC functions and reads paper titles
// from the papers table. It implements repositories.Datastore.
type Client struct {
	baseURL    string
	serviceKey string
	functions  map[string]string
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates a Supabase datastore client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		functions:  cfg.Functions,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type matchRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchCount     int       `json:"match_count"`
}

type matchRow struct {
	PaperID      string   `json:"paper_id"`
	SectionTitle *string  `json:"section_title"`
	Content      string   `json:"content"`
	Similarity   *float64 `json:"similarity"`
}

type paperRow struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Search implements repositories.ChunkSearcher
func (c *Client) Search(ctx context.Context, vector []float32, topK int, embeddingModel string) ([]models.RetrievedChunk, error) {
	fn, ok := c.functions[embeddingModel]
	if !ok || fn == "" {
		return nil, fmt.Errorf("no search function configured for embedding model %q", embeddingModel)
	}

	body, err := json.Marshal(matchRequest{QueryEmbedding: vector, MatchCount: topK})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/rpc/"+url.PathEscape(fn), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var rows []matchRow
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}

	chunks := make([]models.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, models.RetrievedChunk{
			PaperID:         row.PaperID,
			SectionTitle:    row.SectionTitle,
			Content:         row.Content,
			SimilarityScore: row.Similarity,
		})
	}

	c.logger.Debug("supabase chunk search complete",
		zap.String("function", fn),
		zap.Int("found", len(chunks)))

	return chunks, nil
}

// LookupTitles implements repositories.TitleLookup
func (c *Client) LookupTitles(ctx context.Context, paperIDs []string) (map[string]string, error) {
	titles := make(map[string]string, len(paperIDs))
	if len(paperIDs) == 0 {
		return titles, nil
	}

	quoted := make([]string, len(paperIDs))
	for i, id := range paperIDs {
		quoted[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	q := url.Values{}
	q.Set("select", "id,title")
	q.Set("id", "in.("+strings.Join(quoted, ",")+")")

	req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/papers?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []paperRow
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	return titles, nil
}

// HealthCheck reads a single paper id to confirm the REST endpoint answers
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/papers?select=id&limit=1", nil)
	if err != nil {
		return err
	}
	var rows []paperRow
	if err := c.do(req, &rows); err != nil {
		return fmt.Errorf("supabase health check failed: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling supabase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
