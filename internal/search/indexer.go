// Package search keeps published opportunities in an Elasticsearch index for
// public browsing.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/models"
)

// Document is the indexed form of an opportunity.
type Document struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Categories      []string  `json:"categories"`
	CategoryIDs     []int64   `json:"categoryIds"`
	SubmissionKind  string    `json:"submissionKind"`
	PlannedPublish  time.Time `json:"plannedPublish"`
	SubmissionStart time.Time `json:"submissionStart"`
	SubmissionEnd   time.Time `json:"submissionEnd"`
}

func NewDocument(o *models.Opportunity, categories []models.Category) Document {
	d := Document{
		ID:              o.ID,
		Title:           o.Title,
		Description:     o.Description,
		CategoryIDs:     o.CategoryIDs,
		SubmissionKind:  string(o.SubmissionKind),
		PlannedPublish:  o.PlannedPublish.UTC(),
		SubmissionStart: o.SubmissionStart.UTC(),
		SubmissionEnd:   o.SubmissionEnd.UTC(),
	}
	for _, c := range categories {
		d.Categories = append(d.Categories, c.FriendlyName())
	}
	return d
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// Index upserts the opportunity document.
func (i *Indexer) Index(ctx context.Context, o *models.Opportunity, categories []models.Category) error {
	body, err := json.Marshal(NewDocument(o, categories))
	if err != nil {
		return err
	}
	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(strconv.FormatInt(o.ID, 10)),
		i.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("index %d: %s", o.ID, res.Status()))
	}
	i.logger.Debug("opportunity indexed", map[string]interface{}{"opportunityId": o.ID})
	return nil
}

// Remove deletes the document. A missing document is not an error.
func (i *Indexer) Remove(ctx context.Context, id int64) error {
	res, err := i.client.Delete(
		i.index,
		strconv.FormatInt(id, 10),
		i.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("delete %d: %s", id, res.Status()))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a full-text query over title, description and categories.
func (i *Indexer) Search(ctx context.Context, text string, size int) ([]Document, error) {
	if size <= 0 {
		size = 20
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"title^3", "description", "categories"},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"submissionEnd": map[string]string{"order": "asc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithSize(size),
	)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("search: %s: %s", res.Status(), msg))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("decode search response: %w", err))
	}
	out := make([]Document, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
