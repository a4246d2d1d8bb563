package introspect

import (
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

type User struct {
	orm.Base
	ID int
}

func (u *User) TableName() string { return "users" }

type Tag struct{ ID int }

func (Tag) TableName() string { return "tags" }

type Image struct{ ID int }

func (Image) TableName() string { return "images" }

// Post is a blog post.
type Post struct {
	orm.Base
	ID    int
	Title string
}

func (p *Post) TableName() string { return "posts" }

// Author returns the author of the post.
func (p *Post) Author() *orm.BelongsTo {
	return p.BelongsTo(p, &User{})
}

// Comments returns the comments of the post.
//
// @return orm.Relation|*orm.HasMany
func (p *Post) Comments() orm.Relation {
	return nil
}

func (p *Post) Tags() orm.Relation {
	return p.BelongsToMany(p, Tag{})
}

// Images is returned through a variable and is not detected.
func (p *Post) Images() orm.Relation {
	rel := p.MorphMany(p, Image{})
	return rel
}

func (p *Post) Slug() string {
	return "post"
}

func (p *Post) helper() *orm.HasOne {
	return p.HasOne(p, &User{})
}

// Widget has one relation of each shape.
type Widget struct {
	orm.Base
}

func (w *Widget) TableName() string { return "widgets" }

func (w *Widget) Rel1() *orm.HasOne {
	return w.HasOne(w, &User{})
}

// Rel2 is documented only.
//
// @return \App\Relations\HasMany
func (w *Widget) Rel2() orm.Relation {
	return nil
}

// Bare declares no relations.
type Bare struct{}

func (Bare) TableName() string { return "bares" }

func (Bare) Name() string { return "bare" }
