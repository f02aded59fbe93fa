package opportunity

import (
	"context"
	"time"

	"beacon/internal/models"
	"beacon/internal/store"
)

// attachDocuments adds uploads to the opportunity. Uploads without a title,
// and uploads whose filename matches the name of a document attached before
// this call, are skipped. Uploads in the same batch are not compared with
// each other. It returns the number attached.
func attachDocuments(ctx context.Context, repos store.Repos, opportunityID int64, uploads []models.DocumentUpload, now time.Time) (int, error) {
	if len(uploads) == 0 {
		return 0, nil
	}
	existing, err := repos.Opportunities().Documents(ctx, opportunityID)
	if err != nil {
		return 0, err
	}
	names := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		names[d.Name] = struct{}{}
	}

	added := 0
	for _, u := range uploads {
		if u.Title == "" || u.Href == "" {
			continue
		}
		if _, dup := names[u.Filename]; dup {
			continue
		}
		doc := &models.OpportunityDocument{
			OpportunityID: opportunityID,
			Name:          u.Title,
			Href:          u.Href,
			CreatedAt:     now,
		}
		if err := repos.Opportunities().AddDocument(ctx, doc); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
