// Package resource extracts trainable (category, text) samples from the
// platform's heterogeneous content types. Each kind knows which of its
// textual fields constitute trainable content; the category comes from
// the resource's moderation state, set by a moderator, never inferred
// here.
package resource

import (
	"fmt"
	"strings"
)

// Kind identifies a platform content type.
type Kind string

const (
	KindComment            Kind = "comment"
	KindProposal           Kind = "proposal"
	KindCollaborativeDraft Kind = "collaborative_draft"
	KindDebate             Kind = "debate"
	KindInitiative         Kind = "initiative"
	KindMeeting            Kind = "meeting"
	KindUser               Kind = "user"
	KindUserGroup          Kind = "user_group"
)

// State is a resource's moderation state. Only StateSpam maps to the
// spam training category; anything else is ham.
type State string

const (
	StateHam  State = "ham"
	StateSpam State = "spam"
)

// Resource is the tagged union of content kinds known to the trainer.
type Resource interface {
	ResourceKind() Kind
}

type Comment struct {
	Body  string
	State State
}

type Proposal struct {
	Title string
	Body  string
	State State
}

type CollaborativeDraft struct {
	Title string
	Body  string
	State State
}

type Debate struct {
	Title       string
	Description string
	State       State
}

type Initiative struct {
	Title       string
	Description string
	State       State
}

type Meeting struct {
	Title       string
	Description string
	Address     string
	State       State
}

type User struct {
	Name     string
	Nickname string
	About    string
	State    State
}

type UserGroup struct {
	Name     string
	Nickname string
	About    string
	State    State
}

func (Comment) ResourceKind() Kind            { return KindComment }
func (Proposal) ResourceKind() Kind           { return KindProposal }
func (CollaborativeDraft) ResourceKind() Kind { return KindCollaborativeDraft }
func (Debate) ResourceKind() Kind             { return KindDebate }
func (Initiative) ResourceKind() Kind         { return KindInitiative }
func (Meeting) ResourceKind() Kind            { return KindMeeting }
func (User) ResourceKind() Kind               { return KindUser }
func (UserGroup) ResourceKind() Kind          { return KindUserGroup }

// Sample is one trainable unit: a category label plus the concatenated
// trainable text of a resource.
type Sample struct {
	Category string
	Text     string
}

// Adapter identifiers. Users and user groups share the user-base
// extraction.
const (
	AdapterUserBase           = "user_base"
	AdapterComment            = "comment"
	AdapterProposal           = "proposal"
	AdapterCollaborativeDraft = "collaborative_draft"
	AdapterDebate             = "debate"
	AdapterInitiative         = "initiative"
	AdapterMeeting            = "meeting"
)

// Map is the trained-model map: which resource kinds are trainable and
// which adapter handles each. Read-only after construction.
type Map map[Kind]string

// NewMap builds the trained-model map from the installed optional
// modules. User entities are always trainable; everything else depends
// on its module being present.
func NewMap(modules []string) Map {
	m := Map{
		KindUser:      AdapterUserBase,
		KindUserGroup: AdapterUserBase,
	}

	for _, module := range modules {
		switch module {
		case "comments":
			m[KindComment] = AdapterComment
		case "debates":
			m[KindDebate] = AdapterDebate
		case "initiatives":
			m[KindInitiative] = AdapterInitiative
		case "meetings":
			m[KindMeeting] = AdapterMeeting
		case "proposals":
			m[KindProposal] = AdapterProposal
			m[KindCollaborativeDraft] = AdapterCollaborativeDraft
		}
	}

	return m
}

// UnsupportedResourceError is returned when a resource kind is absent
// from the trained-model map.
type UnsupportedResourceError struct {
	Kind Kind
}

func (e *UnsupportedResourceError) Error() string {
	return fmt.Sprintf("unsupported resource kind %q", e.Kind)
}

// Extract returns the trainable sample of res: its textual fields
// joined in a stable order, tagged with the category derived from its
// moderation state.
func (m Map) Extract(res Resource) (Sample, error) {
	if _, ok := m[res.ResourceKind()]; !ok {
		return Sample{}, &UnsupportedResourceError{Kind: res.ResourceKind()}
	}

	var (
		fields []string
		state  State
	)

	switch r := res.(type) {
	case Comment:
		fields = []string{r.Body}
		state = r.State
	case Proposal:
		fields = []string{r.Title, r.Body}
		state = r.State
	case CollaborativeDraft:
		fields = []string{r.Title, r.Body}
		state = r.State
	case Debate:
		fields = []string{r.Title, r.Description}
		state = r.State
	case Initiative:
		fields = []string{r.Title, r.Description}
		state = r.State
	case Meeting:
		fields = []string{r.Title, r.Description, r.Address}
		state = r.State
	case User:
		fields = []string{r.Name, r.Nickname, r.About}
		state = r.State
	case UserGroup:
		fields = []string{r.Name, r.Nickname, r.About}
		state = r.State
	default:
		return Sample{}, &UnsupportedResourceError{Kind: res.ResourceKind()}
	}

	return Sample{
		Category: category(state),
		Text:     join(fields),
	}, nil
}

func category(state State) string {
	if state == StateSpam {
		return string(StateSpam)
	}
	return string(StateHam)
}

func join(fields []string) string {
	kept := fields[:0]
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field != "" {
			kept = append(kept, field)
		}
	}
	return strings.Join(kept, " ")
}
