package introspect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// RelationPkgPath is the import path of the package declaring the
// relation handle types
const RelationPkgPath = "github.com/conduit-lang/smokescreen/pkg/orm"

// Strategy decides whether a method returns a relation, and of which family
type Strategy interface {
	Name() string
	Classify(m Method) (orm.RelationType, bool)
}

// Classifier runs strategies in order until one recognizes the method
type Classifier struct {
	strategies []Strategy
}

// NewClassifier creates a classifier from an ordered list of strategies
func NewClassifier(strategies ...Strategy) *Classifier {
	return &Classifier{strategies: strategies}
}

// DefaultClassifier checks the declared return type, then the @return
// doc annotation, then the method body
func DefaultClassifier() *Classifier {
	return NewClassifier(
		DeclaredTypeStrategy{PkgPath: RelationPkgPath},
		AnnotationStrategy{},
		BodyStrategy{},
	)
}

// Strategies returns the configured strategies in order
func (c *Classifier) Strategies() []Strategy {
	return c.strategies
}

// Classify returns the relation type of m. The second result is false
// when no strategy recognizes the method, which is not an error.
func (c *Classifier) Classify(m Method) (orm.RelationType, bool) {
	for _, s := range c.strategies {
		if typ, ok := s.Classify(m); ok {
			return typ, true
		}
	}
	return 0, false
}

// familiesBySuffix lists family names longest first, so that suffix
// matching never stops at a shorter family
var familiesBySuffix = func() []string {
	names := orm.Families()
	sort.SliceStable(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})
	return names
}()

// DeclaredTypeStrategy recognizes methods whose declared result is one
// of the relation handle types of PkgPath
type DeclaredTypeStrategy struct {
	PkgPath string
}

// Name implements Strategy
func (DeclaredTypeStrategy) Name() string { return "declared-type" }

// Classify implements Strategy
func (s DeclaredTypeStrategy) Classify(m Method) (orm.RelationType, bool) {
	if m.Result.IsZero() || m.Result.PkgPath != s.PkgPath {
		return 0, false
	}
	for _, family := range orm.Families() {
		if m.Result.Name == family {
			return orm.ParseFamily(family)
		}
	}
	return 0, false
}

var returnTag = regexp.MustCompile(`@return\s+(\S+)`)

// AnnotationStrategy recognizes methods documented with
// "@return <type>|<type>..." where a type ends with a family name
type AnnotationStrategy struct{}

// Name implements Strategy
func (AnnotationStrategy) Name() string { return "annotation" }

// Classify implements Strategy
func (AnnotationStrategy) Classify(m Method) (orm.RelationType, bool) {
	match := returnTag.FindStringSubmatch(m.Doc)
	if match == nil {
		return 0, false
	}
	for _, typ := range strings.Split(match[1], "|") {
		typ = strings.ToLower(strings.TrimSpace(typ))
		for _, family := range familiesBySuffix {
			if strings.HasSuffix(typ, strings.ToLower(family)) {
				return orm.ParseFamily(family)
			}
		}
	}
	return 0, false
}

var firstReturn = regexp.MustCompile(`(?m)^\s*return\s+(.+)$`)

// BodyStrategy recognizes methods whose first return line calls a
// relation constructor, e.g. "return p.HasMany(p, &Comment{})". A
// relation returned through an intermediate variable is not recognized.
type BodyStrategy struct{}

// Name implements Strategy
func (BodyStrategy) Name() string { return "body" }

// Classify implements Strategy
func (BodyStrategy) Classify(m Method) (orm.RelationType, bool) {
	match := firstReturn.FindStringSubmatch(m.Body)
	if match == nil {
		return 0, false
	}
	stmt := strings.ToLower(match[1])
	for _, family := range familiesBySuffix {
		if strings.Contains(stmt, "."+strings.ToLower(family)+"(") {
			return orm.ParseFamily(family)
		}
	}
	return 0, false
}
