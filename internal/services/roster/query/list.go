package query

import (
	"fmt"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/services/roster/storage"
)

const listOrder = "created DESC, id DESC"

// MemberColumns returns the member_list projection in scan order. The
// description slot holds the full description only for the owner.
func MemberColumns(lookup storage.LookupContext) []string {
	return []string{
		"id", "hid", "system", "name", "display_name",
		descriptionColumn(lookup) + " AS description",
		"public_description", "visibility", "created",
	}
}

// GroupColumns returns the group_list projection in scan order.
func GroupColumns(lookup storage.LookupContext) []string {
	return []string{
		"id", "hid", "system", "name", "display_name",
		descriptionColumn(lookup) + " AS description",
		"public_description", "visibility", "member_count", "created",
	}
}

// MemberList builds the statement listing a system's members, or the
// members of opts.GroupFilter when set.
func MemberList(dialect Dialect, system storage.SystemID, opts storage.ListQueryOptions) (Statement, error) {
	b := NewBuilder(dialect)
	err := b.Apply(
		memberScope(system, opts.GroupFilter),
		privacyClause(opts.PrivacyFilter),
		searchClause(opts),
		filterClause(opts.Filter),
	)
	if err != nil {
		return Statement{}, err
	}
	return b.Select(MemberColumns(opts.Context), "member_list", listOrder), nil
}

// GroupList builds the statement listing a system's groups. GroupFilter
// does not apply to groups and is ignored.
func GroupList(dialect Dialect, system storage.SystemID, opts storage.ListQueryOptions) (Statement, error) {
	b := NewBuilder(dialect)
	err := b.Apply(
		systemScope(system),
		privacyClause(opts.PrivacyFilter),
		searchClause(opts),
		filterClause(opts.Filter),
	)
	if err != nil {
		return Statement{}, err
	}
	return b.Select(GroupColumns(opts.Context), "group_list", listOrder), nil
}

func descriptionColumn(lookup storage.LookupContext) string {
	if lookup == storage.LookupByOwner {
		return "description"
	}
	return "public_description"
}

func systemScope(system storage.SystemID) Clause {
	return func(b *Builder) (string, error) {
		return "system = " + b.Bind(int64(system)), nil
	}
}

func memberScope(system storage.SystemID, group *storage.GroupID) Clause {
	if group == nil {
		return systemScope(system)
	}
	return func(b *Builder) (string, error) {
		return "id IN (SELECT member_id FROM group_members WHERE group_id = " + b.Bind(int64(*group)) + ")", nil
	}
}

func privacyClause(level *storage.PrivacyLevel) Clause {
	return func(b *Builder) (string, error) {
		if level == nil {
			return "", nil
		}
		if !level.Valid() {
			return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid privacy filter %d", *level))
		}
		return "visibility = " + b.Bind(int64(*level)), nil
	}
}

func searchClause(opts storage.ListQueryOptions) Clause {
	return func(b *Builder) (string, error) {
		if opts.Search == "" {
			return "", nil
		}
		needle := b.Bind(opts.Search)
		columns := []string{"name", "display_name"}
		if opts.SearchDescription {
			columns = append(columns, descriptionColumn(opts.Context))
		}
		condition := "("
		for i, column := range columns {
			if i > 0 {
				condition += " OR "
			}
			condition += b.Dialect().Contains(column, needle)
		}
		return condition + ")", nil
	}
}

func filterClause(filter string) Clause {
	return func(b *Builder) (string, error) {
		return TranslateFilter(b, filter)
	}
}
