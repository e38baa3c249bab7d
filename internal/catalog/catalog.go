// Package catalog declares the entity schemas of the editorial domain:
// sites, users and authors, sources, categories, listings and articles.
package catalog

import (
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/field"
)

// Type names.
const (
	Site     = "site"
	User     = "user"
	Author   = "author"
	Source   = "source"
	Category = "category"
	Listing  = "listing"
	Article  = "article"
)

// New returns a registry holding every catalog type.
func New(opts ...entity.Option) (*entity.Registry, error) {
	reg := entity.NewRegistry(opts...)
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// MustNew is New for program start-up.
func MustNew(opts ...entity.Option) *entity.Registry {
	reg, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return reg
}

// Register defines the catalog types in reg, dependencies first.
func Register(reg *entity.Registry) error {
	specs := []entity.Spec{
		{Type: Site, Fields: []entity.FieldDef{
			{Name: "domain_name", Decl: field.Text()},
			{Name: "display_name", Decl: field.Text()},
		}},
		{Type: User, Fields: []entity.FieldDef{
			{Name: "username", Decl: field.Text()},
			{Name: "password", Decl: field.Password()},
		}},
		{Type: Author, Fields: []entity.FieldDef{
			{Name: "user", Decl: field.Reference(reg.Ref(User))},
			{Name: "name", Decl: field.Text()},
			{Name: "slug", Decl: field.Text()},
			{Name: "description", Decl: field.Text()},
			{Name: "text", Decl: field.Text()},
			{Name: "email", Decl: field.Text()},
		}},
		{Type: Source, Fields: []entity.FieldDef{
			{Name: "name", Decl: field.Text()},
			{Name: "url", Decl: field.Text()},
			{Name: "description", Decl: field.Text()},
		}},
		{Type: Category, Fields: []entity.FieldDef{
			{Name: "title", Decl: field.Text()},
			{Name: "description", Decl: field.Text()},
			{Name: "content", Decl: field.Text()},
			{Name: "template", Decl: field.Text()},
			{Name: "slug", Decl: field.Text()},
			{Name: "parent_category", Decl: field.Reference(reg.Ref(Category))},
			{Name: "site", Decl: field.Reference(reg.Ref(Site))},
			{Name: "app_data", Decl: field.JSON()},
		}},
		{Type: Listing, Fields: []entity.FieldDef{
			{Name: "commercial", Decl: field.Bool()},
			{Name: "publish_from", Decl: field.Datetime()},
			{Name: "publish_to", Decl: field.Datetime()},
			{Name: "resource_uri", Decl: field.Text()},
		}},
		{Type: Article, Fields: []entity.FieldDef{
			{Name: "title", Decl: field.Text()},
			{Name: "upper_title", Decl: field.Text()},
			{Name: "created", Decl: field.Datetime()},
			{Name: "updated", Decl: field.Datetime()},
			{Name: "slug", Decl: field.Text()},
			{Name: "description", Decl: field.Text()},
			{Name: "content", Decl: field.Text()},
			{Name: "category", Decl: field.Reference(reg.Ref(Category))},
			{Name: "authors", Decl: field.Collection(reg.Ref(Author))},
			{Name: "source", Decl: field.Reference(reg.Ref(Source))},
			{Name: "publish_from", Decl: field.Datetime()},
			{Name: "publish_to", Decl: field.Datetime()},
			{Name: "url", Decl: field.Text()},
			{Name: "listings", Decl: field.Collection(reg.Ref(Listing))},
		}},
	}

	for _, spec := range specs {
		if _, err := reg.Define(spec); err != nil {
			return err
		}
	}
	return nil
}
