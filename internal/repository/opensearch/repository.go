package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
)

const auditIndexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"tenant_id": { "type": "keyword" },
			"tenant_slug": { "type": "keyword" },
			"principal_id": { "type": "keyword" },
			"action": { "type": "keyword" },
			"outcome": { "type": "keyword" },
			"error_code": { "type": "keyword" },
			"reason": { "type": "text" },
			"method": { "type": "keyword" },
			"path": { "type": "keyword" },
			"remote_ip": { "type": "keyword" },
			"metadata": { "type": "object", "dynamic": true },
			"timestamp": { "type": "date" }
		}
	},
	"settings": {
		"index": {
			"number_of_shards": 1,
			"number_of_replicas": 1,
			"refresh_interval": "5s"
		}
	}
}`

type Repository struct {
	client *opensearch.Client
	config *config.OpenSearchConfig

	// indices already known to exist, so the existence check runs once per
	// index per process
	mu      sync.RWMutex
	indices map[string]struct{}
}

func NewRepository(client *opensearch.Client, config *config.OpenSearchConfig) *Repository {
	return &Repository{
		client:  client,
		config:  config,
		indices: make(map[string]struct{}),
	}
}

func indexTime(event *domain.AuditEvent) time.Time {
	if event.Timestamp.IsZero() {
		return time.Now()
	}
	return event.Timestamp
}

func (r *Repository) Index(ctx context.Context, event *domain.AuditEvent) error {
	indexName := r.config.GetIndexName(event.TenantID, indexTime(event))
	if err := r.ensureIndex(ctx, indexName); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      indexName,
		DocumentID: event.ID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

func (r *Repository) BulkIndex(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	for i := range events {
		indexName := r.config.GetIndexName(events[i].TenantID, indexTime(&events[i]))
		if err := r.ensureIndex(ctx, indexName); err != nil {
			return err
		}

		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": indexName, "_id": events[i].ID},
		})
		if err != nil {
			return fmt.Errorf("failed to marshal action: %w", err)
		}
		doc, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		body.Write(action)
		body.WriteByte('\n')
		body.Write(doc)
		body.WriteByte('\n')
	}

	req := opensearchapi.BulkRequest{Body: &body}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request failed: %s", res.String())
	}

	return nil
}

func (r *Repository) Search(ctx context.Context, filter *domain.AuditEventFilter) ([]domain.AuditEvent, error) {
	queryJSON, err := json.Marshal(buildSearchQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{r.config.GetIndexPattern(filter.TenantID)},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return []domain.AuditEvent{}, nil
		}
		return nil, fmt.Errorf("search request failed: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source domain.AuditEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	events := make([]domain.AuditEvent, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		events = append(events, hit.Source)
	}
	return events, nil
}

// DeleteIndex removes every audit index of a tenant.
func (r *Repository) DeleteIndex(ctx context.Context, tenantID string) error {
	pattern := r.config.GetIndexPattern(tenantID)
	req := opensearchapi.IndicesDeleteRequest{Index: []string{pattern}}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to delete indices: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error deleting indices: %s", res.String())
	}

	r.mu.Lock()
	prefix := strings.TrimSuffix(pattern, "*")
	for name := range r.indices {
		if strings.HasPrefix(name, prefix) {
			delete(r.indices, name)
		}
	}
	r.mu.Unlock()

	return nil
}

func (r *Repository) ensureIndex(ctx context.Context, indexName string) error {
	r.mu.RLock()
	_, known := r.indices[indexName]
	r.mu.RUnlock()
	if known {
		return nil
	}

	exists := opensearchapi.IndicesExistsRequest{Index: []string{indexName}}
	res, err := exists.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		create := opensearchapi.IndicesCreateRequest{
			Index: indexName,
			Body:  strings.NewReader(auditIndexMapping),
		}
		res, err = create.Do(ctx, r.client)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		defer res.Body.Close()

		// a concurrent writer may have created it first
		if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
			return fmt.Errorf("error creating index: %s", res.String())
		}
	}

	r.mu.Lock()
	r.indices[indexName] = struct{}{}
	r.mu.Unlock()
	return nil
}

func buildSearchQuery(filter *domain.AuditEventFilter) map[string]any {
	must := make([]map[string]any, 0)

	terms := map[string]string{
		"principal_id": filter.PrincipalID,
		"action":       filter.Action,
		"outcome":      filter.Outcome,
	}
	for field, value := range terms {
		if value != "" {
			must = append(must, map[string]any{"term": map[string]any{field: value}})
		}
	}

	if !filter.StartTime.IsZero() || !filter.EndTime.IsZero() {
		timeRange := make(map[string]any)
		if !filter.StartTime.IsZero() {
			timeRange["gte"] = filter.StartTime
		}
		if !filter.EndTime.IsZero() {
			timeRange["lt"] = filter.EndTime
		}
		must = append(must, map[string]any{"range": map[string]any{"timestamp": timeRange}})
	}

	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "desc"}},
		},
	}

	if filter.Limit > 0 {
		query["from"] = filter.Offset
		query["size"] = filter.Limit
	}

	return query
}
