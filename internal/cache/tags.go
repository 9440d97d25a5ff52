package cache

import (
	"fmt"
	"strings"
)

// TagType names a family of cached entities.
type TagType string

// Tag types.
const (
	TagAccounts     TagType = "Accounts"
	TagTransactions TagType = "Transactions"
	TagInsights     TagType = "Insights"
	TagUser         TagType = "User"
	TagAI           TagType = "AI"
)

// ListID marks the tag of a whole collection.
const ListID = "LIST"

// Tag labels a cache entry. A Tag without an ID is a type-level tag.
type Tag struct {
	Type TagType
	ID   string
}

// TypeTag returns the type-level tag for t.
func TypeTag(t TagType) Tag {
	return Tag{Type: t}
}

// IDTag returns the tag of one entity.
func IDTag(t TagType, id string) Tag {
	return Tag{Type: t, ID: id}
}

// ListTag returns the collection tag for t.
func ListTag(t TagType) Tag {
	return Tag{Type: t, ID: ListID}
}

func (t Tag) String() string {
	if t.ID == "" {
		return string(t.Type)
	}
	return string(t.Type) + ":" + t.ID
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, error) {
	if s == "" {
		return Tag{}, fmt.Errorf("empty tag")
	}
	typ, id, _ := strings.Cut(s, ":")
	return Tag{Type: TagType(typ), ID: id}, nil
}

// AllTypes lists every tag type, for invalidating everything.
func AllTypes() []Tag {
	return []Tag{
		TypeTag(TagUser),
		TypeTag(TagAccounts),
		TypeTag(TagTransactions),
		TypeTag(TagInsights),
		TypeTag(TagAI),
	}
}

func tagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}
