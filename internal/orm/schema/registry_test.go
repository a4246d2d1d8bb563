package schema

import (
	"testing"

	"github.com/conduit-lang/smokescreen/pkg/orm"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get schema", func(t *testing.T) {
		registry := NewRegistry()

		schema := NewResourceSchema("Post")
		schema.Columns = []Column{{Name: "id", Kind: "integer"}}

		if err := registry.Register(schema); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		retrieved, exists := registry.Get("Post")
		if !exists {
			t.Fatal("schema should exist")
		}
		if retrieved.TableName != "posts" {
			t.Errorf("expected posts, got %s", retrieved.TableName)
		}

		byTable, exists := registry.GetByTable("posts")
		if !exists || byTable != retrieved {
			t.Error("schema should be reachable by table name")
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		registry := NewRegistry()

		schema := NewResourceSchema("Post")
		if err := registry.Register(schema); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := registry.Register(schema); err == nil {
			t.Error("expected error for duplicate registration")
		}
	})

	t.Run("duplicate table", func(t *testing.T) {
		registry := NewRegistry()

		a := NewResourceSchema("Post")
		b := NewResourceSchema("Article")
		b.TableName = "posts"

		registry.Register(a)
		if err := registry.Register(b); err == nil {
			t.Error("expected error for table registered twice")
		}
	})

	t.Run("duplicate column", func(t *testing.T) {
		registry := NewRegistry()

		schema := NewResourceSchema("Post")
		schema.Columns = []Column{{Name: "id", Kind: "integer"}, {Name: "id", Kind: "bigint"}}

		if err := registry.Register(schema); err == nil {
			t.Error("expected error for duplicate column")
		}
		if registry.Count() != 0 {
			t.Errorf("expected rejected schema not to be stored")
		}
	})

	t.Run("list schemas", func(t *testing.T) {
		registry := NewRegistry()

		for _, name := range []string{"User", "Post", "Comment"} {
			registry.Register(NewResourceSchema(name))
		}

		names := registry.List()
		expected := []string{"Comment", "Post", "User"}
		if len(names) != len(expected) {
			t.Fatalf("expected %d schemas, got %d", len(expected), len(names))
		}
		for i, name := range expected {
			if names[i] != name {
				t.Errorf("expected %s at %d, got %s", name, i, names[i])
			}
		}
	})

	t.Run("relationships", func(t *testing.T) {
		registry := NewRegistry()

		schema := NewResourceSchema("Post")
		schema.Relationships["comments"] = &Relationship{
			Type:           orm.RelationHasMany,
			TargetResource: "Comment",
			FieldName:      "comments",
			ForeignKey:     "post_id",
		}
		registry.Register(schema)

		rels, err := registry.GetRelationships("Post")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rels["comments"].Type.Shape() != orm.ShapeCollection {
			t.Errorf("expected collection shape, got %s", rels["comments"].Type.Shape())
		}

		if _, err := registry.GetRelationships("Missing"); err == nil {
			t.Error("expected error for unknown resource")
		}
	})

	t.Run("clear", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(NewResourceSchema("Post"))
		registry.Clear()

		if registry.Count() != 0 {
			t.Errorf("expected empty registry, got %d", registry.Count())
		}
		if _, ok := registry.GetByTable("posts"); ok {
			t.Error("table index should be cleared")
		}
	})
}

func TestResourceSchema_Columns(t *testing.T) {
	rs := NewResourceSchema("Post")
	rs.Columns = []Column{{Name: "id", Kind: "integer"}, {Name: "title", Kind: "string"}}

	names := rs.ColumnNames()
	if len(names) != 2 || names[0] != "id" || names[1] != "title" {
		t.Errorf("expected [id title], got %v", names)
	}
	if !rs.HasColumn("title") || rs.HasColumn("body") {
		t.Error("HasColumn should report declared columns only")
	}
}
