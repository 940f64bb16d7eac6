package domain

// TemplateItem is a compose template listed by the registry search.
type TemplateItem struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
