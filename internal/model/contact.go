// Package model defines the persisted entities of the contacts platform
// and the invariants the services enforce over them.
package model

import (
	"strings"
	"time"
)

// Contact is a contact-book entry owned by exactly one user. Email is
// unique per owner when present; latitude/longitude are either both set
// and valid or both nil. A stored 0 coordinate is never written by the
// import or sweep paths — nil is the only "not geocoded" representation.
type Contact struct {
	ID     string
	UserID string

	FirstName string
	LastName  string
	Email     string

	Position    string
	CompanyName string
	Title       string
	Role        string

	Phone      string
	WorkPhone  string
	HomePhone  string
	WebsiteURL string

	Address             string
	AdditionalAddresses string
	City                string
	State               string
	Country             string
	Latitude            *float64
	Longitude           *float64
	Timezone            string

	Birthday string
	Notes    string

	Tags       []string
	Industries []string
	Socials    map[string]string

	SearchIndex string

	OnPlatform bool
	HasSync    bool
	NeedsSync  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BuildSearchIndex derives the lower-cased searchable text for the
// contact from name, email, position, and tags. Every write path must
// call this before persisting; there is no save hook to do it implicitly.
func (c *Contact) BuildSearchIndex() string {
	fields := make([]string, 0, 4+len(c.Tags))
	for _, f := range []string{c.FirstName, c.LastName, c.Email, c.Position} {
		if strings.TrimSpace(f) != "" {
			fields = append(fields, strings.TrimSpace(f))
		}
	}
	for _, t := range c.Tags {
		if strings.TrimSpace(t) != "" {
			fields = append(fields, strings.TrimSpace(t))
		}
	}
	return strings.ToLower(strings.Join(fields, " "))
}

// Normalize lower-cases and trims the identity fields and recomputes the
// search index. Called by create, update, and bulk-import paths alike.
func (c *Contact) Normalize() {
	c.FirstName = strings.ToLower(strings.TrimSpace(c.FirstName))
	c.LastName = strings.ToLower(strings.TrimSpace(c.LastName))
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.SearchIndex = c.BuildSearchIndex()
}
