package apollo

import "errors"

// ErrNoOrganization indicates the enrich endpoint could not resolve the
// company.
var ErrNoOrganization = errors.New("apollo: no organization found")

// ErrNoContacts indicates the people search returned no verified contacts.
var ErrNoContacts = errors.New("apollo: no verified contacts found")

// IsNoOrganization reports whether err wraps ErrNoOrganization.
func IsNoOrganization(err error) bool {
	return errors.Is(err, ErrNoOrganization)
}

// IsNoContacts reports whether err wraps ErrNoContacts.
func IsNoContacts(err error) bool {
	return errors.Is(err, ErrNoContacts)
}
