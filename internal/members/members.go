// Package members resolves member references within groups and the contact catalog.
package members

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gitlab.com/flik/groupledger/internal/models"
)

// ErrNotFound is returned when a member or contact does not exist.
var ErrNotFound = errors.New("member not found")

// Contact is a person that can be added to groups or paid directly.
type Contact struct {
	ID        string
	Name      string
	ContactID string
}

// Catalog is a fixed, ordered list of possible participants.
type Catalog struct {
	contacts []Contact
	byID     map[string]int
}

// NewCatalog creates a catalog from contacts. Later duplicates of an id are ignored.
func NewCatalog(contacts ...Contact) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(contacts))}
	for _, contact := range contacts {
		if _, ok := c.byID[contact.ID]; ok {
			continue
		}
		c.byID[contact.ID] = len(c.contacts)
		c.contacts = append(c.contacts, contact)
	}
	return c
}

// DefaultCatalog returns the built-in contact list.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Contact{ID: "1", Name: "Janez Novak", ContactID: "+386 40 123 456"},
		Contact{ID: "2", Name: "ALJAŽ V.", ContactID: "+386 40 102 030"},
		Contact{ID: "3", Name: "MARTA K.", ContactID: "+386 41 234 567"},
		Contact{ID: "4", Name: "PETRA M.", ContactID: "+386 42 345 678"},
		Contact{ID: "5", Name: "MIHA M.", ContactID: "+386 43 456 789"},
		Contact{ID: "6", Name: "ANA S.", ContactID: "+386 44 567 890"},
		Contact{ID: "7", Name: "MARKO P.", ContactID: "+386 45 678 901"},
		Contact{ID: "8", Name: "LARA T.", ContactID: "+386 46 789 012"},
	)
}

// Contacts returns all contacts in catalog order.
func (c *Catalog) Contacts() []Contact {
	return slices.Clone(c.contacts)
}

// Lookup returns the contact with the given id.
func (c *Catalog) Lookup(id string) (Contact, error) {
	i, ok := c.byID[id]
	if !ok {
		return Contact{}, fmt.Errorf("%w: contact %q", ErrNotFound, id)
	}
	return c.contacts[i], nil
}

// LookupByName returns the first contact whose name matches, ignoring case.
func (c *Catalog) LookupByName(name string) (Contact, error) {
	name = strings.TrimSpace(name)
	for _, contact := range c.contacts {
		if strings.EqualFold(contact.Name, name) {
			return contact, nil
		}
	}
	return Contact{}, fmt.Errorf("%w: contact named %q", ErrNotFound, name)
}

// Members returns zero-balance group members for the given contact ids, in argument order.
func (c *Catalog) Members(ids ...string) ([]models.Member, error) {
	out := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		contact, err := c.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, contact.Member())
	}
	return out, nil
}

// Member converts the contact into a group member with a zero balance.
func (c Contact) Member() models.Member {
	return models.Member{ID: c.ID, Name: c.Name, ContactID: c.ContactID}
}

// Find returns the member of group with the given id.
func Find(group *models.Group, id string) (*models.Member, error) {
	i := group.MemberIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q in group %q", ErrNotFound, id, group.ID)
	}
	return &group.Members[i], nil
}

// FindByName returns the first member of group whose name matches, ignoring case.
func FindByName(group *models.Group, name string) (*models.Member, error) {
	name = strings.TrimSpace(name)
	for i := range group.Members {
		if strings.EqualFold(group.Members[i].Name, name) {
			return &group.Members[i], nil
		}
	}
	return nil, fmt.Errorf("%w: named %q in group %q", ErrNotFound, name, group.ID)
}

// Validate checks that every id references a member of group.
func Validate(group *models.Group, ids ...string) error {
	for _, id := range ids {
		if group.MemberIndex(id) < 0 {
			return fmt.Errorf("%w: %q in group %q", ErrNotFound, id, group.ID)
		}
	}
	return nil
}
