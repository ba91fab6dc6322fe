package api

import "time"

// Response view models. The public view never exposes module timestamps;
// the admin views add them. Document summaries carry updatedAt in both
// because listings are ordered by it.

type publicModuleView struct {
	ID          string            `json:"id"`
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Preview     string            `json:"preview"`
	Description string            `json:"description"`
	Documents   []DocumentSummary `json:"documents"`
}

type adminModuleView struct {
	publicModuleView
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type publicSummaryView struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

type adminSummaryView struct {
	publicSummaryView
	UpdatedAt time.Time `json:"updatedAt"`
}

func toPublicModule(d *ModuleDetail) publicModuleView {
	docs := d.Documents
	if docs == nil {
		docs = []DocumentSummary{}
	}
	return publicModuleView{
		ID:          d.ID,
		Slug:        d.Slug,
		Title:       d.Title,
		Preview:     d.Preview,
		Description: d.Description,
		Documents:   docs,
	}
}

func toAdminModule(d *ModuleDetail) adminModuleView {
	return adminModuleView{
		publicModuleView: toPublicModule(d),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func toPublicSummaries(list []ModuleSummary) []publicSummaryView {
	out := make([]publicSummaryView, 0, len(list))
	for _, m := range list {
		out = append(out, publicSummaryView{ID: m.ID, Slug: m.Slug, Title: m.Title, Preview: m.Preview})
	}
	return out
}

func toAdminSummaries(list []ModuleSummary) []adminSummaryView {
	out := make([]adminSummaryView, 0, len(list))
	for _, m := range list {
		out = append(out, adminSummaryView{
			publicSummaryView: publicSummaryView{ID: m.ID, Slug: m.Slug, Title: m.Title, Preview: m.Preview},
			UpdatedAt:         m.UpdatedAt,
		})
	}
	return out
}
